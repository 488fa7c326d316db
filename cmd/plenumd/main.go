package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plenumd:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var configPath string

	conf := defaultConfig()

	cmd := &cobra.Command{
		Use:           "plenumd",
		Short:         "plenumd runs a gossip cluster membership node",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				flagged := conf

				conf = defaultConfig()
				if err := conf.Load(configPath); err != nil {
					return err
				}

				// Flags set explicitly on the command line win over the file.
				fs := cmd.Flags()
				if fs.Changed("grpc.bind-addr") {
					conf.GRPC.BindAddr = flagged.GRPC.BindAddr
				}
				if fs.Changed("grpc.advertise-addr") {
					conf.GRPC.AdvertiseAddr = flagged.GRPC.AdvertiseAddr
				}
				if fs.Changed("admin.bind-addr") {
					conf.Admin.BindAddr = flagged.Admin.BindAddr
				}
				if fs.Changed("cluster.join") {
					conf.Cluster.Join = flagged.Cluster.Join
				}
				if fs.Changed("log.level") {
					conf.Log.Level = flagged.Log.Level
				}
			}

			if err := conf.Validate(); err != nil {
				return err
			}

			return runServer(conf)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&conf.GRPC.BindAddr, "grpc.bind-addr", conf.GRPC.BindAddr, "address the gossip RPC server listens on")
	fs.StringVar(&conf.GRPC.AdvertiseAddr, "grpc.advertise-addr", conf.GRPC.AdvertiseAddr, "address advertised to other nodes")
	fs.StringVar(&conf.Admin.BindAddr, "admin.bind-addr", conf.Admin.BindAddr, "address of the HTTP admin server, empty to disable")
	fs.StringSliceVar(&conf.Cluster.Join, "cluster.join", conf.Cluster.Join, "peer addresses to join on startup")
	fs.StringVar(&conf.Log.Level, "log.level", conf.Log.Level, "log level (debug, info, warn, error)")

	return cmd
}
