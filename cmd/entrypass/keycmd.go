package main

import (
	"flag"
	"strings"

	"entrypass/go-core/internal/keys"
	"entrypass/go-core/internal/keystore"
	"entrypass/go-core/internal/randsource"
)

func runKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	name := fs.String("name", "", "key name inside the keystore")
	passEnv := fs.String("passphrase-env", defaultPassphraseEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)

	k, err := keys.Generate(randsource.NewSecure())
	if err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	store := keystore.NewStore(cfg.Keystore.Dir)
	if err := store.Save(*name, passphrase(*passEnv), k); err != nil {
		writeStderrln(err.Error(), exitCodeForKeystore(err))
	}
	path, _ := store.Path(*name)
	pub := k.Compressed()
	if err := printJSON(map[string]any{
		"name":       strings.TrimSpace(*name),
		"path":       path,
		"public_key": []any{pub.EvenY, "0x" + pub.X.Text(16)},
	}); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}

// runKeys lists the keystore without unlocking anything.
func runKeys(args []string) {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	store := keystore.NewStore(cfg.Keystore.Dir)
	names, err := store.List()
	if err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	entries := make([]map[string]string, 0, len(names))
	for _, name := range names {
		path, _ := store.Path(name)
		entries = append(entries, map[string]string{"name": name, "path": path})
	}
	if err := printJSON(map[string]any{"dir": store.Dir(), "keys": entries}); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}

func runMnemonic(args []string) {
	fs := flag.NewFlagSet("mnemonic", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	name := fs.String("name", "", "key name inside the keystore")
	restore := fs.String("restore", "", "restore the key from these words instead of printing them")
	passEnv := fs.String("passphrase-env", defaultPassphraseEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	store := keystore.NewStore(cfg.Keystore.Dir)

	if strings.TrimSpace(*restore) != "" {
		k, err := keys.FromMnemonic(*restore)
		if err != nil {
			writeStderrln(err.Error(), exitInvalidInput)
		}
		if err := store.Save(*name, passphrase(*passEnv), k); err != nil {
			writeStderrln(err.Error(), exitCodeForKeystore(err))
		}
		writeStdoutf(exitIOFailed, "restored key %s\n", strings.TrimSpace(*name))
		return
	}

	k := loadKey(cfg, *name, *passEnv)
	words, err := keys.Mnemonic(k)
	if err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	writeStdoutln(exitIOFailed, words)
}
