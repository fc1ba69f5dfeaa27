package provider

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is a builder configuration file. Field names follow the YAML keys.
type Config struct {
	// Dir is the directory holding the configuration file. Source paths and
	// output paths are relative to it.
	Dir string `yaml:"-" toml:"-"`

	Sources        []string       `yaml:"sources" toml:"sources"`
	Recipe         map[string]any `yaml:"recipe" toml:"recipe"`
	RecipeProvider string         `yaml:"recipeProvider" toml:"recipeProvider"`
	FamilyName     string         `yaml:"familyName" toml:"familyName"`

	OutputDir string `yaml:"outputDir" toml:"outputDir"`
	VFDir     string `yaml:"vfDir" toml:"vfDir"`
	TTDir     string `yaml:"ttDir" toml:"ttDir"`
	OTDir     string `yaml:"otDir" toml:"otDir"`
	WoffDir   string `yaml:"woffDir" toml:"woffDir"`

	BuildVariable bool  `yaml:"buildVariable" toml:"buildVariable"`
	BuildStatic   bool  `yaml:"buildStatic" toml:"buildStatic"`
	BuildTTF      bool  `yaml:"buildTTF" toml:"buildTTF"`
	BuildOTF      bool  `yaml:"buildOTF" toml:"buildOTF"`
	BuildWebfont  *bool `yaml:"buildWebfont" toml:"buildWebfont"`
	BuildSmallCap bool  `yaml:"buildSmallCap" toml:"buildSmallCap"`

	AutohintTTF   bool `yaml:"autohintTTF" toml:"autohintTTF"`
	AutohintOTF   bool `yaml:"autohintOTF" toml:"autohintOTF"`
	TTFAUseScript bool `yaml:"ttfaUseScript" toml:"ttfaUseScript"`

	CleanUp  bool   `yaml:"cleanUp" toml:"cleanUp"`
	LogLevel string `yaml:"logLevel" toml:"logLevel"`

	IncludeSourceFixes    bool   `yaml:"includeSourceFixes" toml:"includeSourceFixes"`
	FvarInstanceAxisDflts string `yaml:"fvarInstanceAxisDflts" toml:"fvarInstanceAxisDflts"`

	FlattenComponents              bool `yaml:"flattenComponents" toml:"flattenComponents"`
	DecomposeTransformedComponents bool `yaml:"decomposeTransformedComponents" toml:"decomposeTransformedComponents"`
	ReverseOutlineDirection        bool `yaml:"reverseOutlineDirection" toml:"reverseOutlineDirection"`
	RemoveOutlineOverlaps          bool `yaml:"removeOutlineOverlaps" toml:"removeOutlineOverlaps"`
	ExpandFeaturesToInstances      bool `yaml:"expandFeaturesToInstances" toml:"expandFeaturesToInstances"`
	CheckCompatibility             bool `yaml:"checkCompatibility" toml:"checkCompatibility"`

	ExtraFontmakeArgs         string `yaml:"extraFontmakeArgs" toml:"extraFontmakeArgs"`
	ExtraVariableFontmakeArgs string `yaml:"extraVariableFontmakeArgs" toml:"extraVariableFontmakeArgs"`
	ExtraStaticFontmakeArgs   string `yaml:"extraStaticFontmakeArgs" toml:"extraStaticFontmakeArgs"`

	IncludeSubsets []map[string]any `yaml:"includeSubsets" toml:"includeSubsets"`
	GlyphData      []string         `yaml:"glyphData" toml:"glyphData"`

	// Keys the schema accepts but the builder ignores.
	Ignored map[string]any `yaml:",inline" toml:"-"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:                      "../fonts",
		VFDir:                          "$outputDir/variable",
		TTDir:                          "$outputDir/ttf",
		OTDir:                          "$outputDir/otf",
		WoffDir:                        "$outputDir/webfonts",
		BuildVariable:                  true,
		BuildStatic:                    true,
		BuildTTF:                       true,
		BuildOTF:                       true,
		BuildSmallCap:                  true,
		AutohintTTF:                    true,
		CleanUp:                        true,
		LogLevel:                       "WARN",
		FlattenComponents:              true,
		DecomposeTransformedComponents: true,
		ReverseOutlineDirection:        true,
		RemoveOutlineOverlaps:          true,
		CheckCompatibility:             true,
	}
}

// LoadConfig reads, validates and decodes a configuration file. The format
// is picked from the extension: .yaml, .yml or .toml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(path, data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ParseConfig validates and decodes configuration data. The name is used
// for the format and in error positions.
func ParseConfig(name string, data []byte) (*Config, error) {
	format, err := formatOf(name)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(name, format, data); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch format {
	case formatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	case formatTOML:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	cfg.expandDirs()
	if len(cfg.Sources) == 0 && len(cfg.Recipe) == 0 {
		return nil, fmt.Errorf("%s: no sources and no recipe", name)
	}
	return cfg, nil
}

// Webfonts reports whether webfont targets are generated. Unset, it
// follows BuildStatic.
func (c *Config) Webfonts() bool {
	if c.BuildWebfont != nil {
		return *c.BuildWebfont
	}
	return c.BuildStatic
}

func (c *Config) expandDirs() {
	for _, dir := range []*string{&c.VFDir, &c.TTDir, &c.OTDir, &c.WoffDir} {
		*dir = strings.ReplaceAll(*dir, "$outputDir", c.OutputDir)
	}
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(name string) (format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return 0, fmt.Errorf("%s: unsupported config format (want .yaml, .yml or .toml)", name)
	}
}
