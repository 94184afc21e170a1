package auth

// Assertion is a verified external identity returned by a provider for a
// single login attempt. It contains facts only, no decisions, and is never
// persisted as is.
type Assertion struct {
	Provider     string // name of the provider that verified it, e.g. "steam"
	ExternalID   string // provider-scoped stable user identifier
	DisplayName  string
	ProfileURL   string
	AvatarSmall  string
	AvatarMedium string
	AvatarLarge  string
}
