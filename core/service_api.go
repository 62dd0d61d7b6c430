package core

import (
	"context"

	"pkt.systems/fileclassifier/schema"
)

// Service is the transport-agnostic API over one classification session.
// Requests are applied one at a time.
type Service interface {
	Key() schema.SessionKey
	State(ctx context.Context) (schema.Session, error)
	Item(ctx context.Context, index int) (schema.Item, error)
	Classify(ctx context.Context, req schema.ClassifyRequest) (schema.Classification, error)
	SaveComment(ctx context.Context, req schema.CommentRequest) (schema.Classification, error)
	DeleteComment(ctx context.Context, index int) error
	Export(ctx context.Context) (schema.ExportData, error)
	FindUnrated(ctx context.Context, req schema.UnratedRequest) (schema.UnratedResponse, error)
	SetPosition(ctx context.Context, index int) error
	Flush(ctx context.Context) error
}
