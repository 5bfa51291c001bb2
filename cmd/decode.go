package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/spf13/cobra"

	"github.com/geekxflood/ndpsdecode/internal/capture"
	"github.com/geekxflood/ndpsdecode/internal/processor"
	"github.com/geekxflood/ndpsdecode/internal/render"
	"github.com/geekxflood/ndpsdecode/internal/storage"
)

var (
	decodeGrammar string
	decodeHex     string
	decodeOffset  int
	decodeFormat  string
	decodeStore   bool
	pcapPort      int
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [file...]",
	Short: "Decode capture files or an inline hex string",
	Long: `Decode one or more capture files (hex dumps, raw binary or pcap) or a hex
string given with --hex. Hex and binary input is decoded as an attribute value
unless --grammar names another element; pcap input defaults to AgentX.`,
	Example: `# Decode a hex dump
	ndpsdecode decode value.hex

	# Decode an inline string field as JSON
	ndpsdecode decode --grammar string --hex "00000003 61626300" --format json

	# Decode starting 8 bytes into the buffer and keep the result
	ndpsdecode decode --offset 8 --store capture.bin`,
	RunE: runDecode,
}

// pcapCmd represents the pcap command
var pcapCmd = &cobra.Command{
	Use:   "pcap <file>",
	Short: "Decode the AgentX PDUs carried in a packet capture",
	Long: `Read a pcap or pcapng file, take every TCP payload to or from the AgentX
port as one PDU and decode it. Segments are not reassembled.`,
	Example: `# Decode AgentX traffic on the standard port
	ndpsdecode pcap trace.pcap

	# AgentX on a non-standard port
	ndpsdecode pcap --port 1705 trace.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: runPcap,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(pcapCmd)

	decodeCmd.Flags().StringVarP(&decodeGrammar, "grammar", "g", "", "Grammar element to decode (see 'syntaxes --grammars')")
	decodeCmd.Flags().StringVar(&decodeHex, "hex", "", "Decode this hex string instead of files")
	decodeCmd.Flags().IntVar(&decodeOffset, "offset", 0, "Byte offset to start decoding at")
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "", "Output format: text or json (default from render.format)")
	decodeCmd.Flags().BoolVar(&decodeStore, "store", false, "Record results in the decode history")

	pcapCmd.Flags().IntVarP(&pcapPort, "port", "p", 0, "AgentX TCP port (default from capture.agentx_port)")
	pcapCmd.Flags().StringVarP(&decodeFormat, "format", "f", "", "Output format: text or json (default from render.format)")
	pcapCmd.Flags().BoolVar(&decodeStore, "store", false, "Record results in the decode history")
}

// decodeSession holds what a one-shot decode needs.
type decodeSession struct {
	cfg       config.Provider
	logger    logging.Logger
	loader    *capture.Loader
	processor *processor.Processor
	sink      render.Sink
	store     *storage.Storage
	closeCfg  func()
}

func newDecodeSession() (*decodeSession, error) {
	cfg, closeCfg := loadProvider()

	logger, err := newLogger(cfg, "warn")
	if err != nil {
		closeCfg()
		return nil, err
	}

	s := &decodeSession{cfg: cfg, logger: logger, closeCfg: closeCfg}

	s.loader, err = capture.NewLoader(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create capture loader: %w", err)
	}

	format := decodeFormat
	if format == "" {
		format = render.FormatFromConfig(cfg)
	}
	s.sink, err = render.NewSink(format)
	if err != nil {
		s.Close()
		return nil, err
	}

	var store processor.Store
	if decodeStore {
		s.store, err = storage.NewStorage(cfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open decode history: %w", err)
		}
		store = s.store
	}

	s.processor, err = processor.NewProcessor(cfg, logger, nil, store)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	return s, nil
}

func (s *decodeSession) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("Failed to close decode history", "error", err.Error())
		}
	}
	s.closeCfg()
}

// run decodes inputs and renders every result to w. It fails when any input
// did not decode.
func (s *decodeSession) run(ctx context.Context, w io.Writer, inputs []processor.Input) error {
	results, err := s.processor.ProcessAll(ctx, inputs)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if err := s.sink.RenderResult(w, res); err != nil {
			return err
		}
		if res.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed to decode", failed, len(results))
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runDecode(cmd *cobra.Command, args []string) error {
	if decodeHex == "" && len(args) == 0 {
		return fmt.Errorf("nothing to decode: give files or --hex")
	}
	if decodeHex != "" && len(args) > 0 {
		return fmt.Errorf("--hex and files are mutually exclusive")
	}

	s, err := newDecodeSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var inputs []processor.Input
	if decodeHex != "" {
		data, err := capture.ParseHex([]byte(decodeHex))
		if err != nil {
			return fmt.Errorf("invalid --hex: %w", err)
		}
		grammar := decodeGrammar
		if grammar == "" {
			grammar = processor.DefaultGrammar
		}
		inputs = append(inputs, processor.Input{Source: "hex", Grammar: grammar, Data: data})
	}

	for _, path := range args {
		c, err := s.loader.LoadFile(path)
		if err != nil {
			return err
		}
		inputs = append(inputs, processor.InputsFromCapture(c, decodeGrammar)...)
	}

	for i := range inputs {
		inputs[i].Offset = decodeOffset
	}

	ctx, cancel := signalContext()
	defer cancel()

	return s.run(ctx, cmd.OutOrStdout(), inputs)
}

func runPcap(cmd *cobra.Command, args []string) error {
	s, err := newDecodeSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if pcapPort != 0 {
		if pcapPort < 0 || pcapPort > 0xffff {
			return fmt.Errorf("invalid port %d", pcapPort)
		}
		s.loader.GetConfig().AgentXPort = pcapPort
	}

	c, err := s.loader.LoadFile(args[0])
	if err != nil {
		return err
	}
	if c.Format != capture.FormatPcap && c.Format != capture.FormatPcapNG {
		return fmt.Errorf("%s is not a packet capture", args[0])
	}
	if len(c.Segments) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "no AgentX payloads on port %d in %s\n", s.loader.GetConfig().AgentXPort, args[0])
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	return s.run(ctx, cmd.OutOrStdout(), processor.InputsFromCapture(c, processor.GrammarAgentX))
}
