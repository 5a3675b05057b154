package templates

import (
	"maps"
	"path"

	"github.com/firmkit/tplsync/internal/models"
)

// DeriveConfig builds the config of a freshly decomposed template. Its id map
// is empty; Reconcile fills it in.
func DeriveConfig(name string, attrs models.Attributes, partNames []string) models.TemplateConfig {
	parts := make(map[string]string, len(partNames))
	for _, part := range partNames {
		if part == "" {
			continue
		}
		parts[part] = path.Join(PartsFolder, part+LiquidExt)
	}
	return models.TemplateConfig{
		IDs:        map[string]int64{},
		Test:       path.Join(TestsFolder, name+"_liquid_test.yml"),
		Text:       MainFile,
		TextParts:  parts,
		Attributes: ProjectAttributes(attrs),
	}
}

// Reconcile produces the config to write for firm after a sync. Ids recorded
// for other firms in existing are kept; every other field comes from derived.
func Reconcile(firm string, remoteID int64, existing *models.TemplateConfig, derived models.TemplateConfig) models.TemplateConfig {
	ids := map[string]int64{}
	if existing != nil && existing.IDs != nil {
		ids = maps.Clone(existing.IDs)
	}
	ids[firm] = remoteID

	next := models.TemplateConfig{
		IDs:        ids,
		Test:       derived.Test,
		Text:       derived.Text,
		TextParts:  maps.Clone(derived.TextParts),
		Attributes: derived.Attributes.Clone(),
	}
	if next.TextParts == nil {
		next.TextParts = map[string]string{}
	}
	return next
}

// UpdateID returns a copy of existing with only the id of firm replaced.
func UpdateID(existing models.TemplateConfig, firm string, remoteID int64) models.TemplateConfig {
	next := existing
	next.IDs = maps.Clone(existing.IDs)
	if next.IDs == nil {
		next.IDs = map[string]int64{}
	}
	next.IDs[firm] = remoteID
	next.TextParts = maps.Clone(existing.TextParts)
	next.Attributes = existing.Attributes.Clone()
	return next
}
