package config

import (
	"fmt"

	"github.com/jessevdk/go-flags"
)

type Command string

const (
	UploadCommand Command = "upload"
	HealthCommand Command = "health"
	SweepCommand  Command = "sweep"
	ServeCommand  Command = "serve"
)

type UploadArgs struct {
	Dataset    string
	File       string
	DatasetKey string
}

type Settings struct {
	Config         Config
	VerboseLogging bool
	Command        Command
	Upload         UploadArgs
}

type options struct {
	ConfigFilePath string `short:"c" long:"config" description:"path to the config file" required:"true"`
	EnvFilePath    string `short:"e" long:"env-file" description:"path to a .env file" default:".env"`
	Verbose        bool   `short:"v" long:"verbose" description:"debug logging" optional:"true"`

	Upload struct {
		Dataset    string `short:"d" long:"dataset" description:"name of the configured dataset" required:"true"`
		File       string `short:"f" long:"file" description:"path to the CSV file to upload" required:"true"`
		DatasetKey string `short:"k" long:"dataset-key" description:"overrides the dataset key written to the key column"`
	} `command:"upload" description:"stage, validate and promote a file into its destination table"`
	Health struct{} `command:"health" description:"check database connectivity and pool usage"`
	Sweep  struct{} `command:"sweep" description:"drop staging tables past their retention"`
	Serve  struct{} `command:"serve" description:"run the staging sweeper on its schedule until interrupted"`
}

// LoadSettings will take the flags and then parse, loadConfig is optional for testing purposes.
func LoadSettings(args []string, loadConfig bool) (*Settings, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("failed to parse args: %w", err)
	}

	settings := &Settings{
		VerboseLogging: opts.Verbose,
		Upload: UploadArgs{
			Dataset:    opts.Upload.Dataset,
			File:       opts.Upload.File,
			DatasetKey: opts.Upload.DatasetKey,
		},
	}

	if parser.Active != nil {
		settings.Command = Command(parser.Active.Name)
	}

	if loadConfig {
		if err := LoadDotEnv(opts.EnvFilePath); err != nil {
			return nil, err
		}

		config, err := readFileToConfig(opts.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		if err = config.applyEnvOverrides(); err != nil {
			return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
		}

		config.setDefaults()
		if err = config.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate config: %w", err)
		}

		settings.Config = *config
	}

	return settings, nil
}
