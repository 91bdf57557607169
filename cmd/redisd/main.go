package main

import (
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/k0kubun/redisd/internal/config"
	"github.com/k0kubun/redisd/internal/logutil"
	"github.com/k0kubun/redisd/internal/server"
)

var version string

// parseOptions mirrors mysqldef's parseOptions: flags first, then a
// --config YAML file merged underneath them (SPEC_FULL.md §1).
func parseOptions(args []string) config.Config {
	var opts struct {
		Host         string `short:"h" long:"host" description:"Interface to bind" value-name:"host"`
		Port         uint   `short:"p" long:"port" description:"Port to listen on" value-name:"port"`
		Password     string `long:"password" description:"Require clients to AUTH with this password" value-name:"password"`
		Prompt       bool   `long:"password-prompt" description:"Force a password prompt instead of --password"`
		Databases    uint   `long:"databases" description:"Number of selectable databases" value-name:"count"`
		SnapshotPath string `long:"snapshot" description:"Path to load/save the binary snapshot" value-name:"path"`
		ReplicaOf    string `long:"replicaof" description:"Start as a replica of host:port" value-name:"host:port"`
		Config       string `long:"config" description:"YAML file providing any of the above as defaults" value-name:"file"`
		Help         bool   `long:"help" description:"Show this help"`
		Version      bool   `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options]"
	_, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	fileConfig, err := config.ParseFile(opts.Config)
	if err != nil {
		log.Fatal(err)
	}

	password := opts.Password
	if opts.Prompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println()
		password = string(pass)
	}

	flagConfig := config.Config{
		Host:         opts.Host,
		Port:         int(opts.Port),
		Password:     password,
		Databases:    int(opts.Databases),
		SnapshotPath: opts.SnapshotPath,
		ReplicaOf:    opts.ReplicaOf,
	}

	return config.Merge(config.Merge(config.Default(), fileConfig), flagConfig)
}

func main() {
	cfg := parseOptions(os.Args[1:])

	logger := logutil.SlogLogger{Logger: logutil.InitSlog()}
	s := server.New(cfg, logger)
	if err := s.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
