package run

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/gagarinchain/accountguard/common"
	"github.com/gagarinchain/accountguard/harness"
	"github.com/gagarinchain/accountguard/programs"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

var logFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} [%{shortfile}] [%{level}] %{message}`,
)

var log = logging.MustGetLogger("main")

var (
	ErrUnknownFormat = errors.New("unknown report format")
	ErrAuditFailed   = errors.New("audit failed")
)

const (
	FormatText = "text"
	FormatYaml = "yaml"
)

// Audit runs the scenarios chosen in s and writes the report to stdout.
func Audit(s *common.Settings) error {
	initLogger(s.Log.Level)
	return AuditTo(os.Stdout, s)
}

// AuditTo runs the scenarios chosen in s and writes the report to w. It fails with
// ErrAuditFailed when any case did not pass.
func AuditTo(w io.Writer, s *common.Settings) error {
	format := s.Audit.Format
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatYaml {
		return errors.Wrapf(ErrUnknownFormat, "%v", format)
	}

	scenarios, err := programs.Select(s.Audit.Scenario...)
	if err != nil {
		return err
	}
	if s.Storage.Dir != "" {
		log.Infof("Keeping ledgers under %v", s.Storage.Dir)
	}
	runner := &harness.Runner{Dir: s.Storage.Dir}
	r := runner.Run(scenarios)

	switch format {
	case FormatYaml:
		out, err := yaml.Marshal(r)
		if err != nil {
			return errors.Wrap(err, "can't marshal report")
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	default:
		if err := writeTable(w, r); err != nil {
			return err
		}
	}

	if s.Audit.Dump {
		dump(w, r)
	}

	if !r.OK() {
		return errors.Wrapf(ErrAuditFailed, "%d of %d cases", r.Failed, len(r.Outcomes))
	}
	return nil
}

func writeTable(w io.Writer, r *harness.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tCASE\tEXPECT\tVULNERABLE\tSECURE\tRESULT")
	for _, o := range r.Outcomes {
		result := "PASS"
		if !o.Pass {
			result = "FAIL: " + o.Reason
		}
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\n", o.Scenario, o.Case, o.Expect, o.Vulnerable, o.Secure, result)
	}
	fmt.Fprintf(tw, "\n%d passed, %d failed\n", r.Passed, r.Failed)
	return tw.Flush()
}

func dump(w io.Writer, r *harness.Report) {
	cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, DisablePointerAddresses: true, DisableCapacities: true}
	for _, o := range r.Outcomes {
		fmt.Fprintf(w, "\n--- %v/%v\n", o.Scenario, o.Case)
		for _, acc := range o.Accounts {
			cfg.Fdump(w, acc)
		}
	}
}

// Scenarios writes the catalogue, one scenario per line followed by its cases.
func Scenarios(w io.Writer) {
	for _, s := range programs.Scenarios() {
		fmt.Fprintf(w, "%v\t%v\n", s.Name, s.Description)
		var names []string
		for _, c := range s.Cases {
			names = append(names, fmt.Sprintf("%v (%v)", c.Name, c.Expect))
		}
		fmt.Fprintf(w, "  %v\n", strings.Join(names, "\n  "))
	}
}

func initLogger(logLevel string) {
	level, err := logging.LogLevel(logLevel)
	if err != nil {
		level = logging.INFO
	}

	backend := logging.NewLogBackend(os.Stderr, "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, logFormat)
	backendLeveled := logging.AddModuleLevel(backendFormatter)
	backendLeveled.SetLevel(level, "")

	logging.SetBackend(backendLeveled)
}
