package main

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"entrypass/go-core/internal/certificate"
	"entrypass/go-core/internal/checkpoint"
	"entrypass/go-core/internal/platform/privacylog"
	"entrypass/go-core/internal/platform/ratelimiter"
	"entrypass/go-core/internal/protocol"
)

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	certPath := fs.String("cert", "", "certificate file")
	passPath := fs.String("pass", "", "pass file")
	asJSON := fs.Bool("json", false, "emit json")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	var res certificate.Result
	switch {
	case *passPath != "":
		res = readPass(*passPath).Verify()
	case *certPath != "":
		res = readCertificate(*certPath).Verify()
	default:
		writeStderrln("one of --cert or --pass is required", exitInvalidInput)
	}
	if *asJSON {
		if err := printJSON(res); err != nil {
			writeStderrln(err.Error(), exitIOFailed)
		}
	} else {
		writeStdoutf(exitIOFailed, "success=%v reason=%s\n", res.Success, res.Reason)
	}
	if !res.Success {
		writeStderrln("verification failed", exitVerifyFailed)
	}
}

func runEncode(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	kind := fs.String("type", "pass-show", "pass-show | pass-import | root-trust | request-user-info | request-pass-creation")
	in := fs.String("in", "", "input pass or certificate file")
	holder := addHolderFlags(fs)
	out := fs.String("out", "", "output frame file (stdout base58 when empty)")
	text := fs.Bool("text", false, "print base58 text even when --out is set")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	var (
		frame []byte
		err   error
	)
	switch *kind {
	case "pass-show":
		frame, err = protocol.EncodePassShow(readPass(*in))
	case "pass-import":
		frame, err = protocol.EncodePassImport(readPass(*in))
	case "root-trust":
		frame, err = protocol.EncodeRequestRootTrust(readCertificate(*in))
	case "request-user-info":
		frame, err = protocol.EncodeRequestUserInfo()
	case "request-pass-creation":
		info, herr := holder.info()
		if herr != nil {
			writeStderrln(herr.Error(), exitInvalidInput)
		}
		frame, err = protocol.EncodeRequestPassCreation(info)
	default:
		writeStderrln("unknown frame type "+*kind, exitInvalidInput)
	}
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	if *out != "" {
		writeFile(*out, frame)
	}
	if *out == "" || *text {
		writeStdoutln(exitIOFailed, protocol.EncodeText(frame))
	}
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "frame file")
	text := fs.String("text", "", "frame in base58 text form")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}

	msg, ok, err := protocol.Decode(readFrame(*in, *text))
	if err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	if !ok {
		writeStderrln("not an entrypass message", exitInvalidInput)
	}
	out := map[string]any{
		"type":       msg.Type.String(),
		"compressed": msg.Compressed,
	}
	switch {
	case msg.UserInfo != nil:
		out["user"] = msg.UserInfo
	case msg.Pass != nil:
		out["pass"] = msg.Pass.View()
	case msg.Certificate != nil:
		out["certificate"] = msg.Certificate.View()
	case msg.Payload != nil:
		out["payload"] = protocol.EncodeText(msg.Payload)
	}
	if err := printJSON(out); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
}

// runAdmit replays scanned frames through a checkpoint. Root trust frames
// and --roots files are registered first, then every shown pass is admitted.
func runAdmit(args []string) {
	fs := flag.NewFlagSet("admit", flag.ExitOnError)
	configPath := fs.String("config", "", "config path (optional)")
	roots := fs.String("roots", "", "comma separated trusted root certificate files (default from config)")
	text := fs.String("text", "", "single frame in base58 text form")
	if err := fs.Parse(args); err != nil {
		writeStderrln(err.Error(), exitInvalidInput)
	}
	cfg := loadConfig(*configPath)
	logger := privacylog.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	reg := prometheus.NewRegistry()
	cp := checkpoint.New(checkpoint.Options{
		Logger:  logger,
		Limiter: ratelimiter.New(cfg.Checkpoint.RatePerSecond, cfg.Checkpoint.Burst, 10*time.Minute),
		Metrics: checkpoint.NewMetrics(reg),
	})

	rootFiles := cfg.Checkpoint.TrustedRoots
	if strings.TrimSpace(*roots) != "" {
		rootFiles = strings.Split(*roots, ",")
	}
	for _, path := range rootFiles {
		if _, err := cp.TrustRoot(readCertificate(strings.TrimSpace(path))); err != nil {
			writeStderrln(path+": "+err.Error(), exitVerifyFailed)
		}
	}

	var frames [][]byte
	if *text != "" {
		frames = append(frames, readFrame("", *text))
	}
	for _, path := range fs.Args() {
		frames = append(frames, readFrame(path, ""))
	}
	if len(frames) == 0 {
		writeStderrln("no frames to admit", exitInvalidInput)
	}

	var events []checkpoint.AuditEvent
	denied := false
	for _, frame := range frames {
		ev, err := cp.HandleMessage(frame)
		if err != nil {
			writeStderrln(err.Error(), exitInvalidInput)
		}
		if ev.EventType == checkpoint.EventPassAdmit && !ev.Admitted() {
			denied = true
		}
		events = append(events, ev)
	}
	if err := printJSON(map[string]any{
		"events":  events,
		"metrics": counterSnapshot(reg),
	}); err != nil {
		writeStderrln(err.Error(), exitIOFailed)
	}
	if denied {
		writeStderrln("admission denied", exitAdmitDenied)
	}
}

// counterSnapshot flattens counters and gauges into name{labels} -> value.
func counterSnapshot(reg *prometheus.Registry) map[string]float64 {
	out := map[string]float64{}
	families, err := reg.Gather()
	if err != nil {
		return out
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}
