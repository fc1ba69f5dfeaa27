package provider

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Axis is a designspace axis.
type Axis struct {
	Tag  string `xml:"tag,attr"`
	Name string `xml:"name,attr"`
}

// Instance is a named instance a static font is built from.
type Instance struct {
	Name       string
	Filename   string
	FamilyName string
	StyleName  string
}

// Source is a parsed font source.
type Source struct {
	// Path as written in the configuration.
	Path       string
	FamilyName string
	Axes       []Axis
	// Masters are master file names relative to the source directory.
	Masters   []string
	Instances []Instance
	SmallCaps bool
}

// Basename returns the source file name without directory.
func (s *Source) Basename() string { return filepath.Base(s.Path) }

// IsDesignspace reports whether the source is a designspace document.
func (s *Source) IsDesignspace() bool { return filepath.Ext(s.Path) == ".designspace" }

// IsUFO reports whether the source is a single UFO master.
func (s *Source) IsUFO() bool { return filepath.Ext(s.Path) == ".ufo" }

// AxisTags returns the axis tags sorted.
func (s *Source) AxisTags() []string {
	tags := make([]string, len(s.Axes))
	for i, a := range s.Axes {
		tags[i] = a.Tag
	}
	sort.Strings(tags)
	return tags
}

// Variable reports whether a variable font can be built from the source.
func (s *Source) Variable() bool {
	return s.IsDesignspace() && len(s.Masters) >= 2
}

type designspaceDoc struct {
	XMLName xml.Name `xml:"designspace"`
	Axes    []Axis   `xml:"axes>axis"`
	Sources []struct {
		Filename   string `xml:"filename,attr"`
		FamilyName string `xml:"familyname,attr"`
		StyleName  string `xml:"stylename,attr"`
	} `xml:"sources>source"`
	Instances []struct {
		Name       string `xml:"name,attr"`
		Filename   string `xml:"filename,attr"`
		FamilyName string `xml:"familyname,attr"`
		StyleName  string `xml:"stylename,attr"`
	} `xml:"instances>instance"`
}

// LoadSource reads the source at path, relative to dir.
func LoadSource(dir, path string) (*Source, error) {
	full := filepath.Join(dir, path)
	src := &Source{Path: path}
	switch filepath.Ext(path) {
	case ".designspace":
		if err := src.loadDesignspace(full); err != nil {
			return nil, err
		}
	case ".ufo":
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("source %s: UFO is not a directory", path)
		}
		src.Masters = []string{filepath.Base(path)}
		base := strings.TrimSuffix(filepath.Base(path), ".ufo")
		src.FamilyName = familyOf(base)
		src.Instances = []Instance{{Filename: filepath.Base(path)}}
	case ".glyphs", ".glyphspackage":
		return nil, fmt.Errorf("source %s: Glyphs sources must be converted to a designspace first", path)
	default:
		return nil, fmt.Errorf("source %s: unknown source type", path)
	}

	smcp, err := hasSmallCaps(filepath.Join(filepath.Dir(full), src.Masters[0]))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", path, err)
	}
	src.SmallCaps = smcp
	return src, nil
}

func (s *Source) loadDesignspace(full string) error {
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("source %s: %w", s.Path, err)
	}
	var doc designspaceDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("source %s: %w", s.Path, err)
	}
	if len(doc.Sources) == 0 {
		return fmt.Errorf("source %s: designspace has no sources", s.Path)
	}

	s.Axes = doc.Axes
	for _, m := range doc.Sources {
		s.Masters = append(s.Masters, m.Filename)
		if s.FamilyName == "" {
			s.FamilyName = m.FamilyName
		}
	}
	for _, in := range doc.Instances {
		inst := Instance{
			Name:       in.Name,
			Filename:   in.Filename,
			FamilyName: in.FamilyName,
			StyleName:  in.StyleName,
		}
		if inst.FamilyName == "" {
			inst.FamilyName = s.FamilyName
		}
		if inst.Name == "" {
			inst.Name = strings.TrimSpace(inst.FamilyName + " " + inst.StyleName)
		}
		if inst.Filename == "" {
			inst.Filename = strings.ReplaceAll(inst.FamilyName, " ", "") + "-" +
				strings.ReplaceAll(inst.StyleName, " ", "") + ".ufo"
		}
		if s.FamilyName == "" {
			s.FamilyName = inst.FamilyName
		}
		s.Instances = append(s.Instances, inst)
	}
	if s.FamilyName == "" {
		s.FamilyName = familyOf(strings.TrimSuffix(s.Basename(), ".designspace"))
	}
	return nil
}

// familyOf guesses a family name from a file base name like Foo-Bold.
func familyOf(base string) string {
	family, _, _ := strings.Cut(base, "-")
	return family
}

func hasSmallCaps(ufo string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(ufo, "features.fea"))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.Contains(string(data), "feature smcp"), nil
}
