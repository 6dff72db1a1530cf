package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// usageError marks bad command-line input.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

// newFlagSet returns a subcommand flag set writing its messages to the
// command's stderr.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parseFlags parses args, reporting bad flags as a usage error.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		return usageErrorf("%s: %v", fs.Name(), err)
	}
	return err
}

// listFlag collects a repeatable, comma-separated flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(s string) error {
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

// triStateFlag is a boolean filter that stays unset unless given a value.
// An empty value clears it.
type triStateFlag struct {
	value *bool
}

func (t *triStateFlag) String() string {
	if t.value == nil {
		return ""
	}
	return strconv.FormatBool(*t.value)
}

func (t *triStateFlag) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		t.value = nil
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("want true, false or empty, got %q", s)
	}
	t.value = &b
	return nil
}
