package domain

import "time"

// Snapshot is the single persisted document holding every authority record family.
type Snapshot struct {
	SnapshotID   string                `json:"snapshotId" dynamodbav:"snapshot_id"`
	Profiles     map[string]Profile    `json:"profiles" dynamodbav:"profiles"`
	UserPolicies map[string]UserPolicy `json:"userPolicies" dynamodbav:"user_policies"`
	GlobalPolicy *GlobalPolicy         `json:"globalPolicy,omitempty" dynamodbav:"global_policy"`
	Registry     []RegistryUser        `json:"registry" dynamodbav:"registry"`
	// RegistryUpdated is when the registry was last replaced; zero while cold.
	RegistryUpdated time.Time `json:"registryLastUpdated" dynamodbav:"registry_last_updated"`
	SavedAt         time.Time `json:"savedAt" dynamodbav:"saved_at"`
}
