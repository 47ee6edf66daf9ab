package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/rentdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// unitCountColumn selects the number of units of each property row
const unitCountColumn = "properties.*, (SELECT COUNT(*) FROM units WHERE units.property_id = properties.id) AS unit_count"

// GormPropertyDirectory implements rental.PropertyDirectory using GORM
type GormPropertyDirectory struct {
	db *gorm.DB
}

// NewGormPropertyDirectory creates a new GormPropertyDirectory
func NewGormPropertyDirectory(db *gorm.DB) *GormPropertyDirectory {
	return &GormPropertyDirectory{db: db}
}

// GetProperty finds a property with its unit count. Returns nil, nil when absent.
func (r *GormPropertyDirectory) GetProperty(ctx context.Context, orgID, id uuid.UUID) (*rental.Property, error) {
	var m models.PropertyModel
	err := r.db.WithContext(ctx).
		Model(&models.PropertyModel{}).
		Select(unitCountColumn).
		Scopes(OrgScope(orgID)).
		Where("id = ?", id).
		Take(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// GetUnit finds a unit. Returns nil, nil when absent.
func (r *GormPropertyDirectory) GetUnit(ctx context.Context, orgID, id uuid.UUID) (*rental.Unit, error) {
	var m models.UnitModel
	if err := r.db.WithContext(ctx).Scopes(OrgScope(orgID)).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// GetTenant finds a renting tenant. Returns nil, nil when absent.
func (r *GormPropertyDirectory) GetTenant(ctx context.Context, orgID, id uuid.UUID) (*rental.Tenant, error) {
	var m models.TenantModel
	if err := r.db.WithContext(ctx).Scopes(OrgScope(orgID)).Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// SearchProperties matches the query against code and name, case-insensitively
func (r *GormPropertyDirectory) SearchProperties(ctx context.Context, orgID uuid.UUID, search rental.PropertySearch) ([]rental.Property, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := r.db.WithContext(ctx).
		Model(&models.PropertyModel{}).
		Select(unitCountColumn).
		Scopes(OrgScope(orgID))
	if q := strings.ToLower(strings.TrimSpace(search.Query)); q != "" {
		like := "%" + escapeLike(q) + "%"
		query = query.Where("(LOWER(code) LIKE ? ESCAPE '\\' OR LOWER(name) LIKE ? ESCAPE '\\')", like, like)
	}

	var rows []models.PropertyModel
	if err := query.Order("name ASC").Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rental.Property, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// GormCompletenessChecker implements rental.CompletenessChecker using the property's additional data columns
type GormCompletenessChecker struct {
	db *gorm.DB
}

// NewGormCompletenessChecker creates a new GormCompletenessChecker
func NewGormCompletenessChecker(db *gorm.DB) *GormCompletenessChecker {
	return &GormCompletenessChecker{db: db}
}

// CheckAdditionalData lists the labels of the empty additional data fields
func (c *GormCompletenessChecker) CheckAdditionalData(ctx context.Context, orgID, propertyID uuid.UUID) (rental.CompletenessReport, error) {
	var m models.PropertyModel
	if err := c.db.WithContext(ctx).Scopes(OrgScope(orgID)).Where("id = ?", propertyID).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rental.CompletenessReport{}, shared.ErrNotFound
		}
		return rental.CompletenessReport{}, err
	}

	fields := []struct {
		label, value string
	}{
		{"Land number", m.LandNumber},
		{"Plot number", m.PlotNumber},
		{"Title deed", m.TitleDeedRef},
		{"Electricity account", m.ElectricityAccount},
		{"Water account", m.WaterAccount},
	}
	missing := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.label)
		}
	}
	return rental.CompletenessReport{Complete: len(missing) == 0, Missing: missing}, nil
}
