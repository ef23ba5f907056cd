package tenantselect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/invoicely-dev/invoicely/internal/models"
)

// Prompter asks the user to pick one of tenants
type Prompter func(tenants []models.Tenant) (*models.Tenant, error)

// ResolveTenant determines which organization to select based on the following priority:
// 1. If idOrName is provided, use the matching organization
// 2. If the user belongs to exactly one organization, use that
// 3. Otherwise, prompt the user to select one interactively
func ResolveTenant(tenants []models.Tenant, idOrName string, prompt Prompter) (*models.Tenant, error) {
	if idOrName != "" {
		return FindTenant(tenants, idOrName)
	}

	if len(tenants) == 0 {
		return nil, fmt.Errorf("you do not belong to any organization yet. Run 'invoicely orgs create' to create one")
	}

	if len(tenants) == 1 {
		return &tenants[0], nil
	}

	if prompt == nil {
		prompt = PromptTenantSelection
	}
	return prompt(tenants)
}

// PromptTenantSelection shows an interactive prompt for the user to select an organization
func PromptTenantSelection(tenants []models.Tenant) (*models.Tenant, error) {
	if len(tenants) == 0 {
		return nil, fmt.Errorf("no organizations to choose from")
	}

	type tenantOption struct {
		Label  string
		Tenant *models.Tenant
	}

	options := make([]tenantOption, len(tenants))
	for i := range tenants {
		options[i] = tenantOption{
			Label:  Label(&tenants[i]),
			Tenant: &tenants[i],
		}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an organization",
		Items:     options,
		Templates: templates,
		Size:      10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(options[index].Label), strings.ToLower(input))
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("organization selection cancelled: %w", err)
	}

	return options[index].Tenant, nil
}

// Label is the display form of a tenant in prompts and listings
func Label(t *models.Tenant) string {
	label := fmt.Sprintf("%s (%s, %s plan)", t.Name, t.Slug, t.Plan)
	if !t.IsActive {
		label += " [inactive]"
	}
	return label
}

// FindTenant finds an organization by ID, slug or name
func FindTenant(tenants []models.Tenant, idOrName string) (*models.Tenant, error) {
	// First try by ID
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		for i := range tenants {
			if tenants[i].ID == id {
				return &tenants[i], nil
			}
		}
	}

	// Then by slug
	for i := range tenants {
		if tenants[i].Slug == idOrName {
			return &tenants[i], nil
		}
	}

	// Then by name, case-insensitively
	for i := range tenants {
		if strings.EqualFold(tenants[i].Name, idOrName) {
			return &tenants[i], nil
		}
	}

	return nil, fmt.Errorf("organization '%s' not found among your organizations", idOrName)
}
