package templates

import "path"

// TemplateDir returns the folder of the named template.
func TemplateDir(name string) string {
	return path.Join(TypeFolder, name)
}

// ConfigPath returns the config.json path of the named template.
func ConfigPath(name string) string {
	return path.Join(TemplateDir(name), ConfigFile)
}

// TemplatePath resolves a path stored in a config, which is relative to the
// template folder.
func TemplatePath(name, rel string) string {
	return path.Join(TemplateDir(name), rel)
}

// MainPath returns the main body path of the named template.
func MainPath(name string) string {
	return TemplatePath(name, MainFile)
}
