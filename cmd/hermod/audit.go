package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Vanaheimr/Hermod-sub016/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log management",
	Long: `Commands for verifying and reading the audit log.

Every key generation, CA creation, issuance, rejected request and chain
validation is appended to a JSON Lines file. Each event carries the SHA-256
hash of the previous one, so edits, deletions and insertions are detected.

Examples:
  hermod audit verify --log /var/log/hermod/audit.jsonl
  hermod audit tail --log /var/log/hermod/audit.jsonl -n 5`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Verify the hash chain of an audit log file.

The first event has hash_prev="sha256:genesis"; every later event links to
the hash of the one before it. The log defaults to audit.path from the
configuration.`,
	Args: cobra.NoArgs,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit events",
	Args:  cobra.NoArgs,
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (default: audit.path)")

	auditTailCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (default: audit.path)")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

func auditFile() (string, error) {
	if auditLogFile != "" {
		return auditLogFile, nil
	}
	if cfg.Audit.Path != "" {
		return cfg.Audit.Path, nil
	}
	return "", errors.New("--log is required (or set audit.path)")
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditFile()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Verifying audit log: %s\n\n", path)

	count, err := audit.VerifyChain(path)
	if err != nil {
		fmt.Fprintln(w, "VERIFICATION FAILED")
		fmt.Fprintf(w, "  Valid events: %d\n", count)
		fmt.Fprintf(w, "  Error: %s\n", err)
		return fmt.Errorf("audit log verification failed: %w", err)
	}

	fmt.Fprintln(w, "VERIFICATION PASSED")
	fmt.Fprintf(w, "  Total events: %d\n", count)
	fmt.Fprintln(w, "  Hash chain: VALID")
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditFile()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	w := cmd.OutOrStdout()

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Fprintln(w, "Audit log is empty")
		return nil
	}
	if len(lines) > auditTailNum {
		lines = lines[len(lines)-auditTailNum:]
	}

	if auditShowJSON {
		fmt.Fprintf(w, "[%s]\n", strings.Join(lines, ",\n"))
		return nil
	}
	for _, line := range lines {
		var event audit.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
			continue
		}
		printEvent(w, &event)
	}
	return nil
}

func printEvent(w io.Writer, e *audit.Event) {
	mark := "ok"
	if e.Result == audit.ResultFailure {
		mark = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s %s\n", e.Timestamp, e.EventType, mark)
	fmt.Fprintf(w, "    Actor:  %s:%s@%s\n", e.Actor.Type, e.Actor.ID, e.Actor.Host)

	if e.Object.Type != "" {
		fmt.Fprintf(w, "    Object: %s", e.Object.Type)
		if e.Object.Serial != "" {
			fmt.Fprintf(w, " serial=%s", e.Object.Serial)
		}
		if e.Object.Subject != "" {
			fmt.Fprintf(w, " subject=%q", e.Object.Subject)
		}
		if e.Object.Path != "" {
			fmt.Fprintf(w, " path=%s", e.Object.Path)
		}
		fmt.Fprintln(w)
	}

	c := e.Context
	var parts []string
	for _, kv := range [][2]string{
		{"profile", c.Profile}, {"issuer", c.Issuer}, {"algorithm", c.Algorithm},
		{"scheme", c.Scheme}, {"not_after", c.NotAfter}, {"reason", c.Reason},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	if len(c.Status) > 0 {
		parts = append(parts, "status="+strings.Join(c.Status, ","))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "    Context: %s\n", strings.Join(parts, " "))
	}
	fmt.Fprintln(w)
}
