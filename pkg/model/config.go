package model

// ServiceConfiguration is everything written into the service's env file.
type ServiceConfiguration struct {
	Hostname          string
	AdminEmail        string
	Secrets           ProvisionedSecrets
	DataDirectory     string
	BlobstoreLocation string
	BlobUploadLimit   int64
	DidPlcURL         string
	AppViewURL        string
	AppViewDID        string
	ReportServiceURL  string
	ReportServiceDID  string
	Crawlers          string
	LogEnabled        bool
}
