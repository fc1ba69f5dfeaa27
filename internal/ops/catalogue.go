package ops

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fontrecipe/internal/ir"
)

// SubsetterEnv selects the subsetter used by hbsubset when the step does not.
const SubsetterEnv = "GFTOOLS_SUBSETTER"

var argsArg = ArgSpec{Name: "args", Kind: ArgArgv, Doc: "extra command-line arguments"}

// Catalogue returns the standard operation definitions, one per name.
func Catalogue() []Definition {
	return []Definition{
		{
			Name:        "buildVariable",
			Description: "Build a variable font from a source file",
			Args:        []ArgSpec{argsArg},
			Ext:         ".ttf",
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{"fontmake", "-o", "variable", "--output-path", c.Output}
				argv = append(argv, sourceFlag(c.Input()), c.Input())
				return append(argv, b.Argv("args")...), nil
			},
		},
		{
			Name:        "buildTTF",
			Description: "Build a TTF from a source file",
			Args:        []ArgSpec{argsArg},
			Ext:         ".ttf",
			Command:     fontmakeStatic("ttf"),
		},
		{
			Name:        "buildOTF",
			Description: "Build an OTF from a source file",
			Args:        []ArgSpec{argsArg},
			Ext:         ".otf",
			Command:     fontmakeStatic("otf"),
		},
		{
			Name:        "instantiateUfo",
			Description: "Create an instance UFO from a Glyphs or designspace file",
			Args: []ArgSpec{
				{Name: "instance_name", Kind: ArgString, Required: true},
				{Name: "glyphData", Kind: ArgList},
				argsArg,
			},
			Ext: ".ufo",
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{"fontmake", "-i", b.Text("instance_name"), "-o", "ufo"}
				argv = append(argv, sourceFlag(c.Input()), c.Input(), "--output-path", c.Output)
				for _, gd := range b.Strings("glyphData") {
					argv = append(argv, "--glyph-data", gd)
				}
				return append(argv, b.Argv("args")...), nil
			},
		},
		{
			Name:        "glyphs2ds",
			Description: "Turn a Glyphs file into a designspace file",
			Args:        []ArgSpec{argsArg},
			Ext:         ".designspace",
			Command: func(b *Bound, c Call) ([]string, error) {
				if sourceFlag(c.Input()) != "-g" {
					return nil, fmt.Errorf("%s is not a Glyphs source", c.Input())
				}
				argv := []string{"fontmake", "-o", "ufo", "-g", c.Input(),
					"--designspace-path", c.Output,
					"--master-dir", strings.TrimSuffix(c.Output, ".designspace") + "-masters"}
				return append(argv, b.Argv("args")...), nil
			},
		},
		{
			Name:        "autohint",
			Description: "Run gftools-autohint",
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"gftools-autohint"}, b.Argv("args")...)
				return append(argv, "-o", c.Output, c.Input()), nil
			},
		},
		{
			Name:        "autohintOTF",
			Description: "Run otfautohint",
			Args:        []ArgSpec{argsArg},
			Exec:        autohintOTF,
		},
		{
			Name:        "fix",
			Description: "Run gftools-fix-font",
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{"gftools-fix-font", "-o", c.Output}
				argv = append(argv, b.Argv("args")...)
				return append(argv, c.Input()), nil
			},
		},
		{
			Name:        "compress",
			Description: "Compress to webfont",
			Ext:         ".woff2",
			Command: func(b *Bound, c Call) ([]string, error) {
				return []string{"fonttools", "ttLib.woff2", "compress", "-o", c.Output, c.Input()}, nil
			},
		},
		{
			Name:        "buildStat",
			Description: "Build a STAT table from one or more font files",
			Arity:       Arity{Min: 1, Max: -1},
			InPlace:     true,
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"gftools-gen-stat", "--inplace"}, b.Argv("args")...)
				argv = append(argv, "--")
				return append(argv, c.Inputs...), nil
			},
		},
		{
			Name:        "rename",
			Description: "Rename a font",
			Args:        []ArgSpec{{Name: "name", Kind: ArgString, Required: true}, argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"gftools-rename-font"}, b.Argv("args")...)
				return append(argv, "-o", c.Output, c.Input(), b.Text("name")), nil
			},
		},
		{
			Name:        "remap",
			Description: "Rewrite a font's cmap table",
			Args:        []ArgSpec{{Name: "mappings", Kind: ArgMap, Required: true}},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{"gftools-remap-font", "-o", c.Output, c.Input()}
				m := b.Map("mappings")
				for _, k := range m.SortedKeys() {
					argv = append(argv, k+"="+ir.Text(m[k]))
				}
				return argv, nil
			},
		},
		{
			Name:        "remapLayout",
			Description: "Run gftools-remap-layout to change a font's layout rules",
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{"gftools-remap-layout", "-o", c.Output, c.Input()}
				return append(argv, b.Argv("args")...), nil
			},
		},
		{
			Name:        "subspace",
			Description: "Run varLib.instancer to subspace a variable font",
			Args:        []ArgSpec{{Name: "axes", Kind: ArgArgv, Required: true}, argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"fonttools", "varLib.instancer"}, b.Argv("args")...)
				argv = append(argv, "-o", c.Output, c.Input())
				return append(argv, b.Argv("axes")...), nil
			},
		},
		{
			Name:        "hbsubset",
			Description: "Run a subsetter to slim down a font",
			Args:        []ArgSpec{{Name: "subsetter", Kind: ArgString}, argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{subsetter(b.Text("subsetter")), "--output-file=" + c.Output,
					"--notdef-outline", "--unicodes=*", "--name-IDs=*", "--layout-features=*", "--glyph-names"}
				argv = append(argv, b.Argv("args")...)
				return append(argv, c.Input()), nil
			},
		},
		{
			Name:        "addSubset",
			Description: "Add a subset from another font",
			Args: []ArgSpec{
				{Name: "subsets", Kind: ArgData, Required: true},
				argsArg,
			},
			Ext:  ".designspace",
			Exec: addSubset,
		},
		{
			Name:        "featureFreeze",
			Description: "Run pyftfeatfreeze to freeze features into the default layout",
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"pyftfeatfreeze"}, b.Argv("args")...)
				return append(argv, c.Input(), c.Output), nil
			},
		},
		{
			Name:        "addChws",
			Description: "Add chws feature to a font",
			Command: func(b *Bound, c Call) ([]string, error) {
				return []string{"add-chws", "-o", c.Output, c.Input()}, nil
			},
		},
		{
			Name:        "buildAvar2",
			Description: "Run gftools-gen-avar2",
			InPlace:     true,
			Args:        []ArgSpec{argsArg},
			Command:     inPlaceTool("gftools-gen-avar2"),
		},
		{
			Name:        "buildFvarInstances",
			Description: "Run gftools-gen-fvar-instances",
			InPlace:     true,
			Args:        []ArgSpec{argsArg},
			Command:     inPlaceTool("gftools-gen-fvar-instances"),
		},
		{
			Name:        "addSpacingAxis",
			Description: "Add spacing axis side bearings",
			InPlace:     true,
			Args:        []ArgSpec{argsArg},
			Command:     inPlaceTool("gftools-gen-spac"),
		},
		{
			Name:        "paintcompiler",
			Description: "Run paintcompiler on a variable font",
			Args:        []ArgSpec{argsArg},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := append([]string{"paintcompiler"}, b.Argv("args")...)
				return append(argv, "-o", c.Output, c.Input()), nil
			},
		},
		{
			Name:        "exec",
			Description: "Run an arbitrary executable; $in and $out are replaced in args",
			Args: []ArgSpec{
				{Name: "exe", Kind: ArgString, Required: true},
				{Name: "args", Kind: ArgArgv, Required: true},
			},
			Command: func(b *Bound, c Call) ([]string, error) {
				argv := []string{b.Text("exe")}
				for _, w := range b.Argv("args") {
					w = strings.ReplaceAll(w, "$in", strings.Join(c.Inputs, " "))
					w = strings.ReplaceAll(w, "$out", c.Output)
					argv = append(argv, w)
				}
				return argv, nil
			},
		},
		{
			Name:        "copy",
			Description: "Copy the input artifact unchanged",
			Exec: func(ctx context.Context, _ Runner, _ *Bound, c Call) error {
				return CopyPath(c.Abs(c.Input()), c.Abs(c.Output))
			},
		},
	}
}

// sourceFlag picks fontmake's input type flag from the source extension.
func sourceFlag(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glyphs", ".glyphspackage":
		return "-g"
	case ".designspace":
		return "-m"
	default:
		return "-u"
	}
}

func fontmakeStatic(format string) func(b *Bound, c Call) ([]string, error) {
	return func(b *Bound, c Call) ([]string, error) {
		argv := []string{"fontmake", "--output-path", c.Output, "-o", format}
		argv = append(argv, sourceFlag(c.Input()), c.Input())
		return append(argv, b.Argv("args")...), nil
	}
}

func inPlaceTool(tool string) func(b *Bound, c Call) ([]string, error) {
	return func(b *Bound, c Call) ([]string, error) {
		argv := []string{tool, "--inplace", c.Output}
		return append(argv, b.Argv("args")...), nil
	}
}

func subsetter(choice string) string {
	if choice == "" {
		choice = os.Getenv(SubsetterEnv)
	}
	switch choice {
	case "python":
		return "pyftsubset"
	case "harfbuzz":
		return "hb-subset"
	}
	if _, err := exec.LookPath("hb-subset"); err == nil {
		return "hb-subset"
	}
	return "pyftsubset"
}

// runTool runs one command and converts a failure into an execution error.
func runTool(ctx context.Context, r Runner, b *Bound, dir string, argv []string) error {
	out, err := r.Run(ctx, dir, argv)
	if err != nil {
		return &OperationExecutionError{
			Name:     b.Def.Name,
			Args:     b.Spec.Args,
			Argv:     argv,
			ExitCode: out.ExitCode,
			Stderr:   tail(out.Stderr),
			Err:      err,
		}
	}
	return nil
}

// autohintOTF retries without zones and stems when the first pass fails.
func autohintOTF(ctx context.Context, r Runner, b *Bound, c Call) error {
	base := append([]string{"otfautohint"}, b.Argv("args")...)
	base = append(base, "-o", c.Output, c.Input())
	if err := runTool(ctx, r, b, c.WorkDir, base); err == nil {
		return nil
	}
	return runTool(ctx, r, b, c.WorkDir, append(base, "--no-zones-stems"))
}

// addSubset writes the subset declarations next to the output and runs
// gftools-add-ds-subsets with them.
func addSubset(ctx context.Context, r Runner, b *Bound, c Call) error {
	data, err := yaml.Marshal(ir.ToAny(b.Spec.Args["subsets"]))
	if err != nil {
		return fmt.Errorf("encode subsets: %w", err)
	}
	yamlPath := c.Output + ".subsets.yaml"
	if err := os.WriteFile(c.Abs(yamlPath), data, 0o644); err != nil {
		return err
	}

	argv := append([]string{"gftools-add-ds-subsets"}, b.Argv("args")...)
	argv = append(argv, "-j", "-y", yamlPath, "-o", c.Output, c.Input())
	return runTool(ctx, r, b, c.WorkDir, argv)
}
