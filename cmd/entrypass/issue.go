package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/pass"
	"entrypass/go-core/internal/randsource"
)

func runRoot(args []string) {
	fs := flag.NewFlagSet("root", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	keyName := fs.String("key", "", "keystore name of the root key")
	name := fs.String("name", "", "certificate name")
	useCases := fs.String("use-cases", "certificates,permanent-passes,timed-passes", "granted use cases")
	validity := fs.Duration("validity", 0, "certificate lifetime (default from config)")
	out := fs.String("out", "", "output certificate file")
	passEnv := fs.String("passphrase-env", defaultPassphraseEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	if *validity <= 0 {
		*validity = cfg.Issuance.CertificateValidity
	}

	k := loadKey(cfg, *keyName, *passEnv)
	root := certificate.New(nil, k.Compressed(), *name, parseUseCases(*useCases), time.Now().Add(*validity))
	if err := root.Sign(k, randsource.NewSecure()); err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	writeCertificate(*out, root)
}

func runIssueCert(args []string) {
	fs := flag.NewFlagSet("issue-cert", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	parentPath := fs.String("parent", "", "parent certificate file")
	parentKeyName := fs.String("parent-key", "", "keystore name of the parent key")
	keyName := fs.String("key", "", "keystore name of the key being certified")
	name := fs.String("name", "", "certificate name")
	useCases := fs.String("use-cases", "timed-passes", "granted use cases")
	validity := fs.Duration("validity", 0, "certificate lifetime (default from config, capped by the parent)")
	out := fs.String("out", "", "output certificate file")
	passEnv := fs.String("passphrase-env", defaultPassphraseEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	if *validity <= 0 {
		*validity = cfg.Issuance.CertificateValidity
	}

	parent := readCertificate(*parentPath)
	parentKey := loadKey(cfg, *parentKeyName, *passEnv)
	subject := loadKey(cfg, *keyName, *passEnv)
	expire := clampExpiry(time.Now().Add(*validity), parent.ExpiresAt())
	cert := certificate.New(parent, subject.Compressed(), *name, parseUseCases(*useCases), expire)
	if err := cert.Sign(parentKey, randsource.NewSecure()); err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	writeCertificate(*out, cert)
}

func runIssuePass(args []string) {
	fs := flag.NewFlagSet("issue-pass", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	certPath := fs.String("cert", "", "issuer certificate file")
	keyName := fs.String("key", "", "keystore name of the issuer key")
	permanent := fs.Bool("permanent", false, "issue a pass that never expires")
	validity := fs.Duration("validity", 0, "pass lifetime (default from config, capped by the certificate)")
	out := fs.String("out", "", "output pass file")
	holder := addHolderFlags(fs)
	passEnv := fs.String("passphrase-env", defaultPassphraseEnv, "environment variable holding the keystore passphrase")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	if *validity <= 0 {
		*validity = cfg.Issuance.PassValidity
	}

	info, err := holder.info()
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	cert := readCertificate(*certPath)
	k := loadKey(cfg, *keyName, *passEnv)
	var expire time.Time
	if !*permanent {
		expire = clampExpiry(time.Now().Add(*validity), cert.ExpiresAt())
	}
	p := pass.New(cert, info, expire)
	if err := p.Sign(k, randsource.NewSecure()); err != nil {
		writeStderrln(err.Error(), exitKeystoreFailed)
	}
	raw, err := p.MarshalBinary()
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	writeFile(*out, raw)
	if err := printJSON(p.View()); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}

type holderFlags struct {
	name, gender, country, birth, socialID, phone, imageURL *string
}

func addHolderFlags(fs *flag.FlagSet) holderFlags {
	return holderFlags{
		name:     fs.String("holder", "", "holder name (random when empty)"),
		gender:   fs.String("gender", "", "holder gender"),
		country:  fs.String("country", "", "holder country"),
		birth:    fs.String("birth", "", "holder birth date YYYY-MM-DD"),
		socialID: fs.String("social-id", "", "holder social id"),
		phone:    fs.String("phone", "", "holder regional phone number"),
		imageURL: fs.String("image-url", "", "holder portrait url"),
	}
}

// info returns the holder with defaults filled in.
func (h holderFlags) info() (pass.UserInformation, error) {
	info := pass.UserInformation{
		Name:                strings.TrimSpace(*h.name),
		Gender:              *h.gender,
		Country:             *h.country,
		SocialID:            *h.socialID,
		RegionalPhoneNumber: *h.phone,
		ImageURL:            *h.imageURL,
	}
	if *h.birth != "" {
		t, err := time.Parse(time.DateOnly, *h.birth)
		if err != nil {
			return pass.UserInformation{}, fmt.Errorf("birth date: %w", err)
		}
		info.BirthTime = t.UnixMilli()
	}
	return pass.NewUserInformation(info), nil
}

func writeCertificate(path string, c *certificate.Certificate) {
	raw, err := c.MarshalBinary()
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	writeFile(path, raw)
	if err := printJSON(c.View()); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}
