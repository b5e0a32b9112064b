package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type flagKind int

const (
	kindString flagKind = iota
	kindFloat
	kindInt
)

// flagSpec ties a command-line flag to its configuration key.
type flagSpec struct {
	name      string
	shorthand string
	key       string
	kind      flagKind
	help      string
	hidden    bool
}

var flagSpecs = []flagSpec{
	{name: FlagChannel, shorthand: "c", key: KeyChannel, kind: kindString, help: HelpChannel},
	{name: FlagPubPath, shorthand: "p", key: KeyPubPath, kind: kindString, help: HelpPubPath},
	{name: FlagSubPath, shorthand: "s", key: KeySubPath, kind: kindString, help: HelpSubPath},
	{name: FlagPublishDelay, shorthand: "d", key: KeyPublishDelay, kind: kindFloat, help: HelpPublishDelay},
	{name: FlagMaxLatency, shorthand: "m", key: KeyMaxLatency, kind: kindFloat, help: HelpMaxLatency},
	{name: FlagOutfile, shorthand: "o", key: KeyOutfile, kind: kindString, help: HelpOutfile},
	{name: FlagMaxBuffer, key: KeyMaxBuffer, kind: kindInt, help: HelpMaxBuffer},
	{name: FlagReconnectBackoff, key: KeyReconnectBackoff, kind: kindFloat, help: HelpReconnectBackoff},
	{name: FlagMaxBackoff, key: KeyMaxBackoff, kind: kindFloat, help: HelpMaxBackoff},
	{name: FlagBackoffStrategy, key: KeyBackoffStrategy, kind: kindString, help: HelpBackoffStrategy},
	{name: FlagBackoffJitter, key: KeyBackoffJitter, kind: kindFloat, help: HelpBackoffJitter},
	{name: FlagPublishTimeout, key: KeyPublishTimeout, kind: kindFloat, help: HelpPublishTimeout},
	{name: FlagConnectTimeout, key: KeyConnectTimeout, kind: kindFloat, help: HelpConnectTimeout},
	{name: FlagMetricsAddr, key: KeyMetricsAddr, kind: kindString, help: HelpMetricsAddr},
	{name: FlagEventsFile, key: KeyEventsFile, kind: kindString, help: HelpEventsFile},
	{name: FlagStatusInterval, key: KeyStatusInterval, kind: kindFloat, help: HelpStatusInterval},
	{name: FlagConfigFile, key: KeyConfigFile, kind: kindString, help: HelpConfigFile},

	// Aliases only fill keys their canonical flag left unset.
	{name: FlagAliasPubDelay, key: KeyPublishDelay, kind: kindFloat, hidden: true},
	{name: FlagAliasPub, key: KeyPubPath, kind: kindString, hidden: true},
	{name: FlagAliasSub, key: KeySubPath, kind: kindString, hidden: true},
	{name: FlagAliasMax, key: KeyMaxLatency, kind: kindFloat, hidden: true},
}

// cliArgs holds what the command line carries besides keyed options.
type cliArgs struct {
	url string
}

// newFlagSet defines every option. Defaults are left zero: they are applied by
// the resolver, so a flag only counts when it was actually given.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false

	for _, spec := range flagSpecs {
		switch spec.kind {
		case kindString:
			fs.StringP(spec.name, spec.shorthand, "", spec.help)
		case kindFloat:
			fs.Float64P(spec.name, spec.shorthand, 0, spec.help)
		case kindInt:
			fs.IntP(spec.name, spec.shorthand, 0, spec.help)
		}
		if spec.hidden {
			_ = fs.MarkHidden(spec.name)
		}
	}
	fs.CountP(FlagVerbose, "v", HelpVerbose)
	fs.BoolP(FlagHelp, "h", false, HelpShowHelp)
	fs.Bool(FlagVersion, false, HelpShowVersion)
	return fs
}

// parseCLIFlags parses args (without the program name) into a FlagSource.
func parseCLIFlags(args []string) (*FlagSource, cliArgs, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, cliArgs{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	if help, _ := fs.GetBool(FlagHelp); help {
		return nil, cliArgs{}, ErrHelp
	}
	if version, _ := fs.GetBool(FlagVersion); version {
		return nil, cliArgs{}, ErrVersion
	}
	if fs.NArg() > 1 {
		return nil, cliArgs{}, fmt.Errorf("%w: unexpected argument %q", ErrInvalidOption, fs.Arg(1))
	}

	flagSource := NewFlagSource()
	for _, spec := range flagSpecs {
		if !fs.Changed(spec.name) {
			continue
		}
		if spec.hidden && flagSource.Has(spec.key) {
			continue
		}
		var (
			value interface{}
			err   error
		)
		switch spec.kind {
		case kindString:
			value, err = fs.GetString(spec.name)
		case kindFloat:
			value, err = fs.GetFloat64(spec.name)
		case kindInt:
			value, err = fs.GetInt(spec.name)
		}
		if err != nil {
			return nil, cliArgs{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		flagSource.Set(spec.key, value)
	}
	if fs.Changed(FlagVerbose) {
		count, _ := fs.GetCount(FlagVerbose)
		flagSource.Set(KeyVerbosity, count)
	}

	return flagSource, cliArgs{url: fs.Arg(0)}, nil
}

// IsUsageError reports whether err should be answered with the short
// invalid-option hint rather than a configuration error.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrInvalidOption)
}

// PrintUsage prints the usage message
func PrintUsage(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s - %s\n", AppName, AppDescription)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpUsage)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s\n", UsageFormat)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpExamples)
	fmt.Fprintln(w)
	for _, example := range usageExamples {
		fmt.Fprintf(w, "  %s\n", example)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpOptions)
	fmt.Fprint(w, defaultsUsage(newFlagSet()))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpEnvironmentVars)
	for _, env := range envDescriptions {
		fmt.Fprintf(w, "  %-28s %s\n", env.Key, env.Desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s\n", HelpNote)
}

// defaultsUsage renders the flag table with the resolver defaults filled in,
// since the flags themselves are registered with zero defaults.
func defaultsUsage(fs *pflag.FlagSet) string {
	defaults := map[string]string{
		FlagChannel:          DefaultChannel,
		FlagPubPath:          DefaultPubPath,
		FlagSubPath:          DefaultSubPath,
		FlagPublishDelay:     fmt.Sprint(DefaultPublishDelaySeconds),
		FlagMaxLatency:       fmt.Sprint(DefaultMaxLatencySeconds),
		FlagMaxBuffer:        fmt.Sprint(DefaultMaxBuffer),
		FlagReconnectBackoff: fmt.Sprint(DefaultReconnectBackoffSeconds),
		FlagMaxBackoff:       fmt.Sprint(DefaultMaxBackoffSeconds),
		FlagBackoffStrategy:  DefaultBackoffStrategy,
		FlagBackoffJitter:    fmt.Sprint(DefaultBackoffJitterSeconds),
		FlagPublishTimeout:   fmt.Sprint(DefaultPublishTimeoutSeconds),
		FlagConnectTimeout:   fmt.Sprint(DefaultConnectTimeoutSeconds),
		FlagStatusInterval:   fmt.Sprint(DefaultStatusIntervalSeconds),
	}
	fs.VisitAll(func(f *pflag.Flag) {
		if def, ok := defaults[f.Name]; ok {
			f.Usage = fmt.Sprintf("%s (default %s)", f.Usage, def)
		}
	})
	return fs.FlagUsagesWrapped(100)
}
