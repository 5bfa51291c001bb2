// Package capture loads decoder input from hex dumps, raw binary files and
// packet captures.
package capture

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geekxflood/common/config"

	"github.com/geekxflood/ndpsdecode/internal/agentx"
)

// Input formats
const (
	FormatHex    = "hex"
	FormatBinary = "bin"
	FormatPcap   = "pcap"
	FormatPcapNG = "pcapng"
)

// Segment is one decodable byte string taken from a capture.
type Segment struct {
	Index     int       `json:"index"`
	Data      []byte    `json:"-"`
	Source    string    `json:"source,omitempty"` // flow for pcap segments
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Capture is a loaded input file.
type Capture struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Format   string    `json:"format"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Segments []Segment `json:"segments"`
}

// LoaderConfig holds configuration for capture loading
type LoaderConfig struct {
	FileExtensions []string `json:"file_extensions"`
	IgnorePatterns []string `json:"ignore_patterns"`
	MaxFileSize    int64    `json:"max_file_size"`
	AgentXPort     int      `json:"agentx_port"`
	RecursiveScan  bool     `json:"recursive_scan"`
}

// DefaultLoaderConfig returns a default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		FileExtensions: []string{".hex", ".txt", ".bin", ".raw", ".pcap", ".pcapng"},
		IgnorePatterns: []string{".*", "_*", "*.bak", "*.tmp"},
		MaxFileSize:    16 * 1024 * 1024,
		AgentXPort:     agentx.Port,
		RecursiveScan:  false,
	}
}

// Loader reads capture files.
type Loader struct {
	config *LoaderConfig
}

// NewLoader creates a new capture loader with the given configuration
func NewLoader(cfg config.Provider) (*Loader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	loaderConfig := DefaultLoaderConfig()

	if exts, err := cfg.GetStringSlice("capture.file_extensions"); err == nil && len(exts) > 0 {
		loaderConfig.FileExtensions = exts
	}

	if patterns, err := cfg.GetStringSlice("capture.ignore_patterns"); err == nil && patterns != nil {
		loaderConfig.IgnorePatterns = patterns
	}

	if size, err := cfg.GetInt("capture.max_file_size", int(loaderConfig.MaxFileSize)); err == nil && size > 0 {
		loaderConfig.MaxFileSize = int64(size)
	}

	if port, err := cfg.GetInt("capture.agentx_port", loaderConfig.AgentXPort); err == nil && port > 0 && port <= 0xffff {
		loaderConfig.AgentXPort = port
	}

	if recursive, err := cfg.GetBool("capture.recursive_scan", loaderConfig.RecursiveScan); err == nil {
		loaderConfig.RecursiveScan = recursive
	}

	return &Loader{config: loaderConfig}, nil
}

// NewDefaultLoader creates a loader with the default configuration.
func NewDefaultLoader() *Loader {
	return &Loader{config: DefaultLoaderConfig()}
}

// GetConfig returns the loader configuration
func (l *Loader) GetConfig() *LoaderConfig {
	return l.config
}

// LoadFile reads and splits one capture file.
func (l *Loader) LoadFile(path string) (*Capture, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.config.MaxFileSize {
		return nil, fmt.Errorf("file %s exceeds maximum size limit", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	c, err := l.Load(filepath.Base(path), content)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	c.Path = path
	c.ModTime = info.ModTime()
	return c, nil
}

// Load splits content already in memory. name selects the format by
// extension when the content carries no pcap magic.
func (l *Loader) Load(name string, content []byte) (*Capture, error) {
	c := &Capture{
		Name:   name,
		Format: DetectFormat(name, content),
		Size:   int64(len(content)),
	}

	switch c.Format {
	case FormatPcap, FormatPcapNG:
		segments, err := ReadPcap(bytes.NewReader(content), uint16(l.config.AgentXPort))
		if err != nil {
			return nil, err
		}
		c.Segments = segments
	case FormatHex:
		data, err := ParseHex(content)
		if err != nil {
			return nil, err
		}
		c.Segments = []Segment{{Data: data}}
	default:
		c.Segments = []Segment{{Data: content}}
	}

	return c, nil
}

// DetectFormat picks the input format from magic bytes, then the extension.
func DetectFormat(name string, content []byte) string {
	if len(content) >= 4 {
		switch {
		case bytes.Equal(content[:4], []byte{0x0a, 0x0d, 0x0d, 0x0a}):
			return FormatPcapNG
		case isPcapMagic(content[:4]):
			return FormatPcap
		}
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".txt":
		return FormatHex
	case ".pcap":
		return FormatPcap
	case ".pcapng":
		return FormatPcapNG
	}
	return FormatBinary
}

func isPcapMagic(b []byte) bool {
	for _, magic := range [][]byte{
		{0xa1, 0xb2, 0xc3, 0xd4}, {0xd4, 0xc3, 0xb2, 0xa1},
		{0xa1, 0xb2, 0x3c, 0x4d}, {0x4d, 0x3c, 0xb2, 0xa1},
	} {
		if bytes.Equal(b, magic) {
			return true
		}
	}
	return false
}

// Matches reports whether path names a file the loader would accept.
func (l *Loader) Matches(path string) bool {
	return !l.shouldIgnoreFile(path) && l.hasValidExtension(path)
}

// ScanDirectory lists the capture files in dir.
func (l *Loader) ScanDirectory(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !l.config.RecursiveScan && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if l.Matches(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}
	return paths, nil
}

func (l *Loader) shouldIgnoreFile(path string) bool {
	filename := filepath.Base(path)

	for _, pattern := range l.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filename); matched {
			return true
		}
	}

	return false
}

func (l *Loader) hasValidExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	for _, validExt := range l.config.FileExtensions {
		if ext == strings.ToLower(validExt) {
			return true
		}
	}

	return false
}
