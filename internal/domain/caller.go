package domain

// Source attributes billed usage to the surface that produced it.
type Source string

// Billing source constants.
const (
	SourceAPI Source = "api"
	SourceWeb Source = "web"
)

// Caller is the resolved identity a request runs under. Built once per
// request after authentication and never shared between requests.
type Caller struct {
	AccountID string
	MemberID  string
	// APIKey is set when the request was authenticated via API key.
	// Empty for session-token callers.
	APIKey string
}

// BillingSource returns where the usage for this caller is attributed.
func (c Caller) BillingSource() Source {
	if c.APIKey != "" {
		return SourceAPI
	}
	return SourceWeb
}
