package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/config"
	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/keystore"
	"entrypass/go-core/internal/pass"
	"entrypass/go-core/internal/protocol"
)

const (
	exitOK             = 0
	exitInvalidInput   = 10
	exitKeystoreFailed = 20
	exitVerifyFailed   = 30
	exitAdmitDenied    = 40
	exitIOFailed       = 50
)

const defaultPassphraseEnv = "ENTRYPASS_PASSPHRASE"

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}

	switch os.Args[1] {
	case "keygen":
		runKeygen(os.Args[2:])
	case "mnemonic":
		runMnemonic(os.Args[2:])
	case "keys":
		runKeys(os.Args[2:])
	case "root":
		runRoot(os.Args[2:])
	case "issue-cert":
		runIssueCert(os.Args[2:])
	case "issue-pass":
		runIssuePass(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "encode":
		runEncode(os.Args[2:])
	case "decode":
		runDecode(os.Args[2:])
	case "admit":
		runAdmit(os.Args[2:])
	case "version", "--version":
		writeStdoutf(exitIOFailed, "entrypass version=%s commit=%s build_date=%s\n", version, commit, buildDate)
	default:
		printUsage()
		os.Exit(exitInvalidInput)
	}
}

func loadConfig(path string) config.Config {
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	return cfg
}

func passphrase(envName string) string {
	v := os.Getenv(envName)
	if v == "" {
		writeStderrln(fmt.Sprintf("passphrase is required in $%s", envName), exitKeystoreFailed)
	}
	return v
}

func loadKey(cfg config.Config, name, envName string) *keys.Key {
	k, err := keystore.NewStore(cfg.Keystore.Dir).Load(name, passphrase(envName))
	if err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	return k
}

func readCertificate(path string) *certificate.Certificate {
	raw := readFile(path)
	c, err := certificate.Parse(raw)
	if err != nil {
		writeStderrln(fmt.Sprintf("%s: %v", path, err), exitInvalidInput)
	}
	return c
}

func readPass(path string) *pass.Pass {
	raw := readFile(path)
	p, err := pass.Parse(raw)
	if err != nil {
		writeStderrln(fmt.Sprintf("%s: %v", path, err), exitInvalidInput)
	}
	return p
}

func readFile(path string) []byte {
	if strings.TrimSpace(path) == "" {
		writeStderrln("input path is required", exitInvalidInput)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
	return raw
}

func writeFile(path string, data []byte) {
	if strings.TrimSpace(path) == "" {
		writeStderrln("output path is required", exitInvalidInput)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}

// readFrame accepts either a raw frame file or its base58 text form.
func readFrame(path, text string) []byte {
	if text != "" {
		raw, err := protocol.DecodeText(strings.TrimSpace(text))
		if err != nil {
			writeStderrln(err.Error(), exitInvalidInput)
		}
		return raw
	}
	return readFile(path)
}

func parseUseCases(raw string) certificate.UseCase {
	u, ok := certificate.ParseUseCases(raw)
	if !ok {
		writeStderrln(fmt.Sprintf("unknown use cases %q (use permanent-passes, timed-passes, certificates)", raw), exitInvalidInput)
	}
	return u
}

// clampExpiry keeps a child from outliving its issuer.
func clampExpiry(want time.Time, limit time.Time) time.Time {
	if want.After(limit) {
		return limit
	}
	return want
}

func exitCodeForKeystore(err error) int {
	if errors.Is(err, keystore.ErrInvalidName) || errors.Is(err, keys.ErrPrivateKeyRange) {
		return exitInvalidInput
	}
	return exitKeystoreFailed
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	writeStdoutln(exitInvalidInput, "entrypass <command> [flags]")
	writeStdoutln(exitInvalidInput, "commands:")
	writeStdoutln(exitInvalidInput, "  keygen      --name <key> [--config path] [--passphrase-env VAR]")
	writeStdoutln(exitInvalidInput, "  mnemonic    --name <key> [--restore \"words...\"]")
	writeStdoutln(exitInvalidInput, "  keys        [--config path]")
	writeStdoutln(exitInvalidInput, "  root        --key <key> --name <label> --use-cases certificates,permanent-passes --out root.cert [--validity 8760h]")
	writeStdoutln(exitInvalidInput, "  issue-cert  --parent p.cert --parent-key <key> --key <key> --name <label> --use-cases ... --out c.cert [--validity d]")
	writeStdoutln(exitInvalidInput, "  issue-pass  --cert c.cert --key <key> --out p.pass [--permanent | --validity d] [--holder name ...]")
	writeStdoutln(exitInvalidInput, "  verify      (--cert c.cert | --pass p.pass) [--json]")
	writeStdoutln(exitInvalidInput, "  encode      --type pass-show|pass-import|root-trust|request-user-info|request-pass-creation [--in file | --holder name ...] [--out frame] [--text]")
	writeStdoutln(exitInvalidInput, "  decode      (--in frame | --text base58)")
	writeStdoutln(exitInvalidInput, "  admit       [--roots a.cert,b.cert] (--in frame | --text base58)...")
	writeStdoutln(exitInvalidInput, "  version")
}

func writeStdoutln(exitCode int, line string) {
	if _, err := fmt.Fprintln(os.Stdout, line); err != nil {
		os.Exit(exitCode)
	}
}

func writeStdoutf(exitCode int, format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stdout, format, args...); err != nil {
		os.Exit(exitCode)
	}
}

func writeStderrln(line string, exitCode int) {
	if _, err := fmt.Fprintln(os.Stderr, line); err != nil {
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}
