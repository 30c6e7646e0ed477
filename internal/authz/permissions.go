package authz

// Permission constants define the available permissions in the system.
const (
	// PermDashboardView allows viewing the status dashboard.
	PermDashboardView = "dashboard.view"

	// PermAdminSettings allows managing application-wide settings.
	PermAdminSettings = "admin.settings"
	// PermAdminServers allows managing directory server connections.
	PermAdminServers = "admin.servers"
	// PermAdminUsers allows managing user accounts.
	PermAdminUsers = "admin.users"
	// PermAdminRoles allows managing roles and their permissions.
	PermAdminRoles = "admin.roles"
	// PermAdminGroups allows managing user groups.
	PermAdminGroups = "admin.groups"
	// PermAdminGroupMappings allows managing mappings between directory groups and roles.
	PermAdminGroupMappings = "admin.group.mappings"
)

// AllPermissions lists every permission for seeding and role editing.
var AllPermissions = []string{
	PermDashboardView,
	PermAdminSettings,
	PermAdminServers,
	PermAdminUsers,
	PermAdminRoles,
	PermAdminGroups,
	PermAdminGroupMappings,
}
