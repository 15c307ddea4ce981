package services

import (
	"sort"
	"strings"

	"github.com/fileharbor/backend/internal/models"
	"github.com/fileharbor/backend/pkg/apperr"
	"gorm.io/gorm"
)

// AccessService evaluates path-scoped permission rules. The most specific
// matching rule wins; a non-recursive rule matches only its exact path,
// while a recursive rule also covers descendants. Unmatched paths default
// to read-write.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// NormalizePath canonicalizes a client-supplied relative path: it strips
// leading and trailing slashes, collapses doubled separators, and resolves
// "." and ".." segments. Paths that climb above the root are rejected, so
// rule matching and disk resolution always see the same canonical form.
// Idempotent on its own output.
func NormalizePath(p string) (string, error) {
	parts := strings.Split(p, "/")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(cleaned) == 0 {
				return "", apperr.Validation("Path escapes the volume root.")
			}
			cleaned = cleaned[:len(cleaned)-1]
		default:
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, "/"), nil
}

type AccessRuleInput struct {
	Path        string
	Permissions string
	Recursive   bool
}

// SetRules replaces the configured rule set.
func (s *AccessService) SetRules(inputs []AccessRuleInput) ([]models.AccessRule, error) {
	rules := make([]models.AccessRule, 0, len(inputs))
	for _, in := range inputs {
		path, err := NormalizePath(in.Path)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, apperr.Validation("Rule path is required.")
		}
		if !models.ValidPermission(in.Permissions) {
			return nil, apperr.Validation("Invalid permissions value: " + in.Permissions)
		}
		rules = append(rules, models.AccessRule{
			Path:        path,
			Permissions: models.Permission(in.Permissions),
			Recursive:   in.Recursive,
		})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.AccessRule{}).Error; err != nil {
			return err
		}
		for i := range rules {
			if err := tx.Create(&rules[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRules returns all rules, most specific path first.
func (s *AccessService) GetRules() ([]models.AccessRule, error) {
	var rules []models.AccessRule
	if err := s.DB.Find(&rules).Error; err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Path) > len(rules[j].Path)
	})
	return rules, nil
}

// GetPermissionForPath resolves the effective permission for a path.
func (s *AccessService) GetPermissionForPath(p string) (models.Permission, error) {
	path, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	rules, err := s.GetRules()
	if err != nil {
		return "", err
	}
	return ResolvePermission(rules, path), nil
}

// ResolvePermission applies the precedence rules to an in-memory rule set.
// Exact matches beat recursive ancestor matches; among ancestors the
// longest prefix wins; a non-recursive ancestor rule never applies to
// descendants.
func ResolvePermission(rules []models.AccessRule, p string) models.Permission {
	path, err := NormalizePath(p)
	if err != nil {
		// A path that escapes the root matches nothing real.
		return models.PermissionHidden
	}

	var best *models.AccessRule
	bestPath := ""
	for i := range rules {
		rule := &rules[i]
		rulePath, err := NormalizePath(rule.Path)
		if err != nil {
			continue
		}
		if rulePath == path {
			// Exact match is maximally specific regardless of recursion.
			return rule.Permissions
		}
		if !rule.Recursive {
			continue
		}
		if !strings.HasPrefix(path, rulePath+"/") {
			continue
		}
		if best == nil || len(bestPath) < len(rulePath) {
			best = rule
			bestPath = rulePath
		}
	}

	if best != nil {
		return best.Permissions
	}
	return models.PermissionReadWrite
}
