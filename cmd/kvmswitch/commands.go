package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/kvmswitch/internal/config"
	"github.com/muurk/kvmswitch/internal/kvm"
	"github.com/muurk/kvmswitch/internal/logging"
	"github.com/muurk/kvmswitch/internal/protocol"
	"github.com/muurk/kvmswitch/internal/simulator"
	"github.com/muurk/kvmswitch/internal/tui"
	"github.com/muurk/kvmswitch/internal/ui"
	"github.com/muurk/kvmswitch/internal/version"
)

// app holds the state shared by the commands of one invocation
type app struct {
	configFile string
	cfg        *config.Config

	// fileLogOnly keeps log output off the terminal
	fileLogOnly bool
}

// load reads the configuration for cmd and starts logging. defaultLevel
// applies when neither the file, the environment nor a flag sets a level.
func (a *app) load(cmd *cobra.Command, defaultLevel string) error {
	cfg, err := config.Load(config.LoadOptions{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	if err := logging.InitializeWithOptions(a.logOptions(cfg, defaultLevel)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	logging.Debug("Configuration loaded",
		zap.String("source", cfg.Source),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Duration("timeout", cfg.Timeout))

	a.cfg = cfg
	return nil
}

func (a *app) logOptions(cfg *config.Config, defaultLevel string) logging.Options {
	level := cfg.Log.Level
	if level == "" {
		level = defaultLevel
	}
	return logging.Options{Level: level, File: cfg.Log.File, NoConsole: a.fileLogOnly}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "kvmswitch [port]",
		Short: "TESmart KVM switch controller",
		Long: `Controls a TESmart-compatible KVM switch over its LAN control port.

Without arguments the currently selected port is printed. With a single
port number the switch changes to that input.

Settings come from the config file, KVMSWITCH_* environment variables
and flags, in increasing order of precedence.`,
		Example: `  # Show currently selected port
  kvmswitch

  # Select port 4
  kvmswitch 4

  # Talk to a switch at a different address
  kvmswitch --host 10.0.0.20 2`,
		Version:       version.Full(),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLegacy(cmd, args)
		},
	}

	// Disable automatic completion command generation
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/kvmswitch/config.yaml)")
	pf.String("host", kvm.DefaultHost, "Switch IP address or hostname")
	pf.Int("port", kvm.DefaultPort, "Switch control TCP port")
	pf.Duration("timeout", kvm.DefaultTimeout, "Connect and I/O timeout per operation")
	pf.Bool("strict", false, "Reject replies without the AA BB ... EE framing")
	pf.String("log-level", "", "Log level (debug, info, warn, error); silent when empty")
	pf.String("log-file", "", "Also write JSON logs to this rotating file")

	root.AddCommand(
		newGetCmd(a),
		newSelectCmd(a),
		newTUICmd(a),
		newSimulateCmd(a),
		newConfigCmd(a),
		newDecodeCmd(),
		newVersionCmd(),
	)

	return root
}

// runLegacy is the bare "kvmswitch [port]" form
func (a *app) runLegacy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if len(args) > 1 {
		return cmd.Usage()
	}

	if err := a.load(cmd, ""); err != nil {
		return err
	}
	client := a.cfg.NewClient()

	if len(args) == 0 {
		fmt.Fprintf(out, "KVMSwitch %s\n", version.Short())
		port, err := client.GetSelectedPortWithContext(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Currently selected port: %d\n", port)
		return nil
	}

	port, err := parsePort(args[0])
	if err != nil {
		return err
	}
	return client.SelectPortWithContext(cmd.Context(), port)
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q", s)
	}
	return port, nil
}

// troubleshooting splits a kvm hint into lines for a failure box
func troubleshooting(err error) []string {
	return strings.Split(kvm.GetTroubleshootingHint(err), "\n")
}

func newGetCmd(a *app) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the currently selected port",
		Long: `Query the switch for its active input and print the port number.

The plain output is just the number, for use in scripts.`,
		Example: `  kvmswitch get
  kvmswitch get --pretty`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd, ""); err != nil {
				return err
			}
			client := a.cfg.NewClient()

			port, err := client.GetSelectedPortWithContext(cmd.Context())
			if err != nil {
				if pretty {
					fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Query failed", err, troubleshooting(err)))
				}
				return err
			}

			if !pretty {
				fmt.Fprintln(cmd.OutOrStdout(), port)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderSuccess(
				fmt.Sprintf("Port %d is selected", port),
				ui.Field{Key: "Port", Value: strconv.Itoa(port)},
				ui.Field{Key: "Label", Value: a.cfg.Label(port)},
				ui.Field{Key: "Switch", Value: client.Address()},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Show the result in a styled box")
	return cmd
}

func newSelectCmd(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "select <port>",
		Short: "Switch to a port",
		Long: `Send the select command for a port (1-255).

The switch does not acknowledge select commands. With --verify the switch
is queried afterwards until it reports the new port.`,
		Example: `  # Select port 3
  kvmswitch select 3

  # Select port 3 and confirm the switch changed input
  kvmswitch select 3 --verify`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePort(args[0])
			if err != nil {
				return err
			}
			if err := a.load(cmd, ""); err != nil {
				return err
			}
			client := a.cfg.NewClient()

			if !verify {
				if err := client.SelectPortWithContext(cmd.Context(), port); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", a.cfg.Label(port))
				return nil
			}
			return a.selectAndVerify(cmd, client, port)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Query the switch afterwards to confirm the selection")
	return cmd
}

func (a *app) selectAndVerify(cmd *cobra.Command, client *kvm.Client, port int) error {
	out := cmd.OutOrStdout()
	opts := kvm.DefaultVerificationOptions()

	fmt.Fprintln(out, ui.NewHeader("Select Port", "kvmswitch select --verify",
		ui.Field{Key: "Switch", Value: client.Address()},
		ui.Field{Key: "Port", Value: fmt.Sprintf("%d (%s)", port, a.cfg.Label(port))},
		ui.Field{Key: "Attempts", Value: strconv.Itoa(opts.MaxAttempts)},
	).Render())

	result, err := client.SelectAndVerify(cmd.Context(), port, opts)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Select failed", err, troubleshooting(err)))
		return err
	}

	if !result.Success {
		if result.Error != nil && result.ActualPort == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFailure("Could not confirm selection", result.Error, troubleshooting(result.Error)))
			return fmt.Errorf("verify port %d: %w", port, result.Error)
		}
		fmt.Fprintln(out, ui.RenderWarning("Switch did not change input",
			ui.Field{Key: "Requested", Value: strconv.Itoa(port)},
			ui.Field{Key: "Reported", Value: strconv.Itoa(result.ActualPort)},
			ui.Field{Key: "Attempts", Value: strconv.Itoa(result.Attempts)},
		))
		return fmt.Errorf("switch reports port %d after selecting port %d", result.ActualPort, port)
	}

	fmt.Fprintln(out, ui.RenderSuccess(
		fmt.Sprintf("Switched to port %d", port),
		ui.Field{Key: "Label", Value: a.cfg.Label(port)},
		ui.Field{Key: "Attempts", Value: strconv.Itoa(result.Attempts)},
	))
	return nil
}

func newTUICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive port switcher",
		Long: `Full-screen switcher with one button per port.

Keys 1-9 and 0 (port 10) or F1-F12 select a port, arrows and enter move
and select, r refreshes, q quits. Rapid key presses are debounced so only
the last choice is sent.

Logs are written only to the configured log file while the switcher
is on screen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.fileLogOnly = true
			if err := a.load(cmd, ""); err != nil {
				return err
			}
			cfg := a.cfg
			return tui.Run(cmd.Context(), cfg.NewClient(), tui.Options{
				Ports:     cfg.PortCount,
				Label:     cfg.Label,
				Debounce:  cfg.Debounce,
				RateLimit: cfg.RateLimit,
			})
		},
	}

	cmd.Flags().Int("ports", config.DefaultPortCount, "Number of port buttons")
	return cmd
}

func newSimulateCmd(a *app) *cobra.Command {
	var (
		listen string
		active int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated switch",
		Long: `Listen for TESmart commands like a real switch.

Select commands change the simulated input, queries report it. Every frame
is logged, which makes this useful for testing scripts without hardware.`,
		Example: `  # Simulate a 16 port switch on the default control port
  kvmswitch simulate

  # Then, in another terminal
  kvmswitch --host 127.0.0.1 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd, "info"); err != nil {
				return err
			}

			sim := simulator.New(simulator.Config{
				Addr:        listen,
				PortCount:   a.cfg.PortCount,
				InitialPort: active,
				ReplyOffset: &a.cfg.ReplyOffset,
			})

			fmt.Fprintln(cmd.OutOrStdout(), ui.NewHeader("KVM Simulator", "kvmswitch simulate",
				ui.Field{Key: "Listen", Value: listen},
				ui.Field{Key: "Ports", Value: strconv.Itoa(a.cfg.PortCount)},
				ui.Field{Key: "Active", Value: strconv.Itoa(active)},
			).Render())
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			start := time.Now()
			if err := sim.Serve(cmd.Context()); err != nil {
				return err
			}
			logging.Info("Simulator stopped",
				zap.Duration("uptime", time.Since(start)),
				zap.Int("connections", sim.ConnectionCount()),
				zap.Int("active_port", sim.ActivePort()))
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", simulator.DefaultAddr, "Listen address")
	cmd.Flags().IntVar(&active, "active", 1, "Initially active port")
	cmd.Flags().Int("ports", config.DefaultPortCount, "Number of switch inputs")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging the config file, environment
and flags, as YAML. The output can be saved as a config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd, ""); err != nil {
				return err
			}
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.cfg.Source != "" {
				fmt.Fprintf(out, "# loaded from %s\n", a.cfg.Source)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newDecodeCmd() *cobra.Command {
	var offset int

	cmd := &cobra.Command{
		Use:   "decode <hex bytes>",
		Short: "Decode a captured frame",
		Long: `Decode a 6-byte frame written as hex, e.g. from a packet capture or
the simulator log. Command frames are fully validated; query replies
are shown with the port number they stand for.`,
		Example: `  kvmswitch decode AA BB 03 01 04 EE
  kvmswitch decode aabb031103ee`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.Join(args, ""))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}
			return decodeFrame(cmd, data, offset)
		},
	}

	cmd.Flags().IntVar(&offset, "reply-offset", protocol.DefaultReplyPortOffset, "Added to the reply port byte")
	return cmd
}

func decodeFrame(cmd *cobra.Command, data []byte, offset int) error {
	out := cmd.OutOrStdout()

	if len(data) == protocol.FrameSize && data[protocol.OffsetOpcode] == protocol.OpcodeQueryReply {
		reply, err := protocol.ParseResponse(data, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", protocol.FormatHex(data))
		fmt.Fprintf(out, "  type: %s\n", protocol.OpcodeName(protocol.OpcodeQueryReply))
		fmt.Fprintf(out, "  port: %d (raw %d)\n", reply.ActivePort(offset), reply.RawPort())
		return nil
	}

	frame, err := protocol.DecodeCommand(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", protocol.FormatHex(data))
	fmt.Fprintf(out, "  type: %s\n", protocol.OpcodeName(frame.Opcode))
	if frame.IsSelect() {
		fmt.Fprintf(out, "  port: %d\n", frame.Operand)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kvmswitch %s %s\n", version.Full(), version.Platform())
		},
	}
}
