// Package templates converts account templates between their remote shape and
// the local folder layout, and reads and writes that layout.
package templates

// Layout constants of a template folder.
const (
	// TypeFolder is the folder holding every account template.
	TypeFolder = "account_templates"

	// MainFile is the primary body file name.
	MainFile = "main.liquid"

	// PartsFolder holds the secondary bodies.
	PartsFolder = "text_parts"

	// TestsFolder holds the generated Liquid test stubs.
	TestsFolder = "tests"

	// ConfigFile is the per-template config record.
	ConfigFile = "config.json"

	// LiquidExt is the extension of every body file.
	LiquidExt = ".liquid"

	mainStub = "{% comment %} MAIN PART {% endcomment %}"
	testStub = "# Add your Liquid Tests here"
)

// NameAttribute is the attribute whose value names the template folder.
const NameAttribute = "name_nl"

// AttributeKeys is the complete list of attributes exchanged with the remote
// service. Anything else found in a config or resource is dropped.
var AttributeKeys = []string{
	"name_en",
	"name_fr",
	"name_nl",
	"text_configuration",
	"externally_managed",
	"account_range",
	"mapping_list_ranges",
}
