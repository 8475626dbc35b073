package domain

// ProviderKind identifies which backend a model belongs to.
type ProviderKind string

const (
	ProviderCloud ProviderKind = "cloudAggregator"
	ProviderLocal ProviderKind = "localServer"
)

// ModelEntry is one row of the model catalog.
type ModelEntry struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Provider    ProviderKind `json:"providerKind"`
}
