package httpapi

// Config defines HTTP API and UI settings.
type Config struct {
	Addr        string
	HubHistory  int
	AllowOrigin string
}
