package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-futurism/pkg/config"
	"github.com/goliatone/go-futurism/pkg/descriptor"
	"github.com/goliatone/go-futurism/pkg/gid"
	"github.com/goliatone/go-futurism/pkg/signer"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sign":
		err = runSign(os.Args[2:], os.Stdout, logger)
	case "verify":
		err = runVerify(os.Args[2:], os.Stdout, logger)
	case "inspect":
		err = runInspect(os.Args[2:], os.Stdout, logger)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("futurism-cli failed")
	}
}

func usage(w io.Writer) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\n", name)
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  sign     sign an entity reference (-ref) or a descriptor (-descriptor)\n")
	fmt.Fprintf(w, "  verify   verify a token under one purpose and print its payload\n")
	fmt.Fprintf(w, "  inspect  verify a token under every known purpose\n")
}

type common struct {
	configPath string
	secret     string
	app        string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "YAML or JSON config file")
	fs.StringVar(&c.secret, "secret", "", "secret key base (prompted when unset)")
	fs.StringVar(&c.app, "app", "", "application name for references")
}

// load resolves configuration from file, environment and flags, prompting for
// the secret when none of them provide it.
func (c *common) load(logger zerolog.Logger) (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		data, err := os.ReadFile(c.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = config.Parse(data, c.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	if c.app != "" {
		cfg.App = c.app
	}
	if c.secret != "" {
		cfg.SecretKeyBase = c.secret
	}
	if cfg.SecretKeyBase == "" {
		secret, err := promptSecret()
		if err != nil {
			return config.Config{}, err
		}
		cfg.SecretKeyBase = secret
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logger.Debug().Interface("config", cfg.Redacted()).Msg("configuration loaded")
	return cfg, nil
}

func promptSecret() (string, error) {
	var secret string
	prompt := &survey.Password{
		Message: "Secret key base:",
		Help:    "The secret the tokens were signed with; set " + config.EnvSecretKeyBase + " to skip this prompt.",
	}
	if err := survey.AskOne(prompt, &secret, survey.WithValidator(survey.Required)); err != nil {
		return "", fmt.Errorf("prompt secret: %w", err)
	}
	return secret, nil
}

func runSign(args []string, out io.Writer, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	var c common
	c.register(fs)
	ref := fs.String("ref", "", "entity reference to sign as sgid, e.g. gid://futurism/Post/1")
	raw := fs.String("descriptor", "", `descriptor JSON to sign as signed_params, e.g. {"partial":"posts/card","locals":{}}`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*ref == "") == (*raw == "") {
		return errors.New("exactly one of -ref or -descriptor is required")
	}

	cfg, err := c.load(logger)
	if err != nil {
		return err
	}
	s, err := cfg.Signer()
	if err != nil {
		return err
	}

	var token string
	if *ref != "" {
		parsed, err := gid.Parse(*ref)
		if err != nil {
			return err
		}
		codec, err := gid.NewCodec(gid.NewLocator(cfg.App), s)
		if err != nil {
			return err
		}
		if token, err = codec.SignReference(parsed); err != nil {
			return err
		}
	} else {
		var d descriptor.Descriptor
		if err := json.Unmarshal([]byte(*raw), &d); err != nil {
			return fmt.Errorf("parse descriptor: %w", err)
		}
		if token, err = descriptor.Sign(s, d); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runVerify(args []string, out io.Writer, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var c common
	c.register(fs)
	token := fs.String("token", "", "token to verify")
	purpose := fs.String("purpose", descriptor.PurposeSignedParams, "token purpose: signed_params or sgid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*token) == "" {
		return errors.New("-token is required")
	}

	cfg, err := c.load(logger)
	if err != nil {
		return err
	}
	s, err := cfg.Signer()
	if err != nil {
		return err
	}
	payload, err := decode(s, strings.TrimSpace(*token), *purpose)
	if err != nil {
		return err
	}
	return writeYAML(out, map[string]any{"purpose": *purpose, "payload": payload})
}

func runInspect(args []string, out io.Writer, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var c common
	c.register(fs)
	token := fs.String("token", "", "token to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*token) == "" {
		return errors.New("-token is required")
	}

	cfg, err := c.load(logger)
	if err != nil {
		return err
	}
	s, err := cfg.Signer()
	if err != nil {
		return err
	}
	for _, purpose := range []string{descriptor.PurposeSignedParams, gid.PurposeSGID} {
		payload, err := decode(s, strings.TrimSpace(*token), purpose)
		if errors.Is(err, signer.ErrInvalidSignature) {
			logger.Debug().Str("purpose", purpose).Msg("token does not verify")
			continue
		}
		if err != nil {
			return err
		}
		return writeYAML(out, map[string]any{"purpose": purpose, "payload": payload})
	}
	return signer.ErrInvalidSignature
}

// decode verifies token and returns its payload as plain data for printing.
func decode(s *signer.Signer, token, purpose string) (any, error) {
	switch purpose {
	case descriptor.PurposeSignedParams:
		d, err := descriptor.Verify(s, token)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	case gid.PurposeSGID:
		var ref string
		if err := s.Verify(token, purpose, &ref); err != nil {
			return nil, err
		}
		return ref, nil
	default:
		return nil, fmt.Errorf("unknown purpose %q", purpose)
	}
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return enc.Close()
}
