package model

// Privilege is a permission code checked by the HTTP layer, e.g. "product:create"
type Privilege string

const (
	// User management
	PrivUserView   Privilege = "user:view"
	PrivUserCreate Privilege = "user:create"
	PrivUserUpdate Privilege = "user:update"
	// Product management
	PrivProductView   Privilege = "product:view"
	PrivProductCreate Privilege = "product:create"
	PrivProductUpdate Privilege = "product:update"
	PrivProductDelete Privilege = "product:delete"
	// Stock ledger
	PrivTransactionView   Privilege = "transaction:view"
	PrivTransactionCreate Privilege = "transaction:create"
	// Categories
	PrivCategoryView   Privilege = "category:view"
	PrivCategoryManage Privilege = "category:manage"
	PrivCategoryDelete Privilege = "category:delete"
	// Dashboard
	PrivDashboardView Privilege = "dashboard:view"
)

var readPrivileges = []Privilege{
	PrivProductView,
	PrivTransactionView,
	PrivCategoryView,
	PrivDashboardView,
}

// Managers may move stock and edit the catalog; only admins delete or manage users.
var rolePrivileges = map[Role][]Privilege{
	RoleAdmin: append(append([]Privilege{}, readPrivileges...),
		PrivProductCreate, PrivProductUpdate, PrivProductDelete,
		PrivTransactionCreate,
		PrivCategoryManage, PrivCategoryDelete,
		PrivUserView, PrivUserCreate, PrivUserUpdate,
	),
	RoleManager: append(append([]Privilege{}, readPrivileges...),
		PrivProductCreate, PrivProductUpdate,
		PrivTransactionCreate,
		PrivCategoryManage,
	),
	RoleStaff: append([]Privilege{}, readPrivileges...),
}
