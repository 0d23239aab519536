package notify

import (
	"strings"

	"financing-portal/internal/models"
)

var rolePaths = map[models.Role]string{
	models.RoleCustomer:     "/dashboard/applications/",
	models.RoleIntermediary: "/admin/applications/",
	models.RoleFinancier:    "/financier/applications/",
}

// Link returns the deep link to applicationID in role's part of the portal.
// Without an application it points at the role's dashboard.
func Link(baseURL string, role models.Role, applicationID string) string {
	base := strings.TrimRight(baseURL, "/")
	path, ok := rolePaths[role]
	if !ok {
		return base + "/login"
	}
	if applicationID == "" {
		return base + strings.TrimSuffix(path, "/applications/")
	}
	return base + path + applicationID
}
