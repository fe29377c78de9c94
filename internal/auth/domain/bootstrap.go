package domain

// SeedData describes the roles and permissions created on first start.
type SeedData struct {
	Roles []RoleDefinition `yaml:"roles"`
}

type RoleDefinition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}
