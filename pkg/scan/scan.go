// Package scan implements the scan engine: it holds a Scan's pattern,
// typed interpretation, cached region list, result set and watchlist, and
// drives full scans, narrowing scans, refreshes and watched-value writes
// against a target process via the memory package.
package scan

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/var77/memscan/pkg/memory"
	"github.com/var77/memscan/pkg/valuetype"
)

const (
	// defaultBlockSize is the read chunk used by init; overlapping reads of
	// this size keep a straddling match from being missed at a block
	// boundary. WithBlockSize overrides it.
	defaultBlockSize = 0x10000

	defaultMinReadSize = 1
	defaultMaxReadSize = 256
)

// Result is one match: an address, its captured bytes, the interpretation
// they were captured under, and the permissions of the region it lived in.
type Result struct {
	Address   uint64
	ValueType valuetype.Type
	Perms     memory.Perm
	Value     []byte
}

// IsReadOnly reports whether the region a Result was found in lacks Write
// permission. UI-level callers should refuse to edit such a Result; the
// engine itself will still attempt the write and surface MemWrite.
func (r Result) IsReadOnly() bool {
	return !r.Perms.Has(memory.Write)
}

// String renders Value under ValueType for display.
func (r Result) String() (string, error) {
	s, err := r.ValueType.Render(r.Value)
	if err != nil {
		return "", newError(TypeMismatch)
	}
	return s, nil
}

// Scan holds all mutable state for one scanning session against a single
// target process: the active pattern, its typed interpretation, the
// cached region list it was derived from, the current result set, and a
// user-curated watchlist of pinned addresses.
type Scan struct {
	pid     int
	pattern []byte
	vt      valuetype.Type

	readSize     *int
	startAddress *uint64
	endAddress   *uint64
	perms        memory.Perm

	regions   []memory.Region
	results   []Result
	watchlist []Result

	blockSize   int
	minReadSize int
	maxReadSize int

	io  memory.IO
	log *logrus.Entry
}

// Option configures a Scan at construction time.
type Option func(*Scan)

// WithIO overrides the memory.IO backend; tests use this to substitute a
// fake target. Production callers omit it to get memory.NewSystem().
func WithIO(io memory.IO) Option {
	return func(s *Scan) { s.io = io }
}

// WithLogger attaches a logger; omitted, the engine logs through logrus's
// standard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Scan) { s.log = log }
}

// WithBlockSize overrides the read chunk size init uses, normally sourced
// from config.ScanConfig.BlockSize.
func WithBlockSize(size int) Option {
	return func(s *Scan) { s.blockSize = size }
}

// WithReadSizeBounds overrides the [min,max] range a SetReadSize value must
// lie in, normally sourced from config.ScanConfig.ReadSizeBounds.
func WithReadSizeBounds(min, max int) Option {
	return func(s *Scan) {
		s.minReadSize = min
		s.maxReadSize = max
	}
}

// New creates a Scan bound to pid with an initial pattern and type,
// eagerly computing the region list from start/end/perms (perms defaults
// to memory.DefaultPerms when zero). Results and watchlist start empty.
func New(pid int, pattern []byte, vt valuetype.Type, start, end *uint64, perms memory.Perm, opts ...Option) (*Scan, error) {
	s := &Scan{
		pid:          pid,
		pattern:      pattern,
		vt:           vt,
		startAddress: start,
		endAddress:   end,
		perms:        perms,
		blockSize:    defaultBlockSize,
		minReadSize:  defaultMinReadSize,
		maxReadSize:  defaultMaxReadSize,
		io:           memory.NewSystem(),
		log:          logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.updateRegions(); err != nil {
		return nil, err
	}
	return s, nil
}

// Results returns the current result set.
func (s *Scan) Results() []Result { return s.results }

// Watchlist returns the current watchlist.
func (s *Scan) Watchlist() []Result { return s.watchlist }

// Regions returns the cached region list.
func (s *Scan) Regions() []memory.Region { return s.regions }

// ValueType returns the engine's current interpretation.
func (s *Scan) ValueType() valuetype.Type { return s.vt }

// Pattern returns the current needle bytes.
func (s *Scan) Pattern() []byte { return s.pattern }

func (s *Scan) updateRegions() error {
	regions, err := s.io.Regions(s.pid, s.startAddress, s.endAddress, s.perms)
	if err != nil {
		return newMemoryError(err)
	}
	s.regions = regions
	return nil
}

// SetPermissions changes the permission filter and re-derives regions.
func (s *Scan) SetPermissions(perms memory.Perm) error {
	s.perms = perms
	return s.updateRegions()
}

// SetValueType changes the interpretation. If patternStr is non-nil, the
// pattern is re-encoded under the new type (may fail with InvalidValue).
func (s *Scan) SetValueType(vt valuetype.Type, patternStr *string) error {
	s.vt = vt
	if patternStr != nil {
		return s.SetPatternFromString(*patternStr)
	}
	return nil
}

// SetPatternFromString parses str under the current type into the
// pattern.
func (s *Scan) SetPatternFromString(str string) error {
	pattern, err := s.vt.Parse(str)
	if err != nil {
		return newError(InvalidValue)
	}
	s.pattern = pattern
	return nil
}

func parseAddressHex(hexStr string) (*uint64, error) {
	if hexStr == "" {
		return nil, nil
	}
	trimmed := hexStr
	if len(trimmed) >= 2 && trimmed[0] == '0' && (trimmed[1] == 'x' || trimmed[1] == 'X') {
		trimmed = trimmed[2:]
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return nil, newError(InvalidAddress)
	}
	return &v, nil
}

// SetStartAddress parses addrHex (empty clears the bound) and enforces
// start <= end before re-deriving regions.
func (s *Scan) SetStartAddress(addrHex string) error {
	parsed, err := parseAddressHex(addrHex)
	if err != nil {
		return err
	}
	if parsed != nil && s.endAddress != nil && *parsed > *s.endAddress {
		return newError(AddressMismatch)
	}
	s.startAddress = parsed
	return s.updateRegions()
}

// SetEndAddress parses addrHex (empty clears the bound) and enforces
// start <= end before re-deriving regions.
func (s *Scan) SetEndAddress(addrHex string) error {
	parsed, err := parseAddressHex(addrHex)
	if err != nil {
		return err
	}
	if parsed != nil && s.startAddress != nil && *parsed < *s.startAddress {
		return newError(AddressMismatch)
	}
	s.endAddress = parsed
	return s.updateRegions()
}

// SetReadSize overrides the capture width for variable-width types. nil
// clears the override; a non-nil size must lie in the read-size bounds
// ([1,256] unless WithReadSizeBounds overrides them).
func (s *Scan) SetReadSize(size *int) error {
	if size == nil {
		s.readSize = nil
		return nil
	}
	if *size < s.minReadSize || *size > s.maxReadSize {
		return newReadSizeError(s.minReadSize, s.maxReadSize)
	}
	s.readSize = size
	return nil
}

// checkPattern guards every scan operation: the pattern must be non-empty
// and must round-trip through the current type's Render.
func (s *Scan) checkPattern() error {
	if len(s.pattern) == 0 {
		return newError(EmptyValue)
	}
	if _, err := s.vt.Render(s.pattern); err != nil {
		return newError(TypeMismatch)
	}
	return nil
}

func (s *Scan) captureSize(fallback int) int {
	if s.readSize != nil {
		return *s.readSize
	}
	return fallback
}

// scanRegion block-scans a single region for pattern, allowing overlapping
// matches, and overlaps the tail of each block read with the next so a
// needle straddling a block boundary is never missed.
func (s *Scan) scanRegion(region memory.Region) ([]Result, error) {
	need := len(s.pattern)
	capture := s.captureSize(need)

	var results []Result
	cur := region.Start
	for cur < region.End {
		toRead := s.blockSize
		if remaining := region.End - cur; remaining < uint64(toRead) {
			toRead = int(remaining)
		}
		if toRead < capture {
			break
		}

		block, err := s.io.Read(s.pid, cur, toRead)
		if err != nil {
			if isProcessAttachErr(err) {
				return nil, err
			}
			// Any other read failure: the region may have become
			// unmapped since enumeration. Skip this block silently.
			cur += uint64(toRead - (need - 1))
			continue
		}

		for _, i := range findAllOverlapping(block, s.pattern) {
			end := i + capture
			if end > len(block) {
				end = len(block)
			}
			value := make([]byte, end-i)
			copy(value, block[i:end])
			results = append(results, Result{
				Address:   cur + uint64(i),
				ValueType: s.vt,
				Perms:     region.Perms,
				Value:     value,
			})
		}

		cur += uint64(toRead - (need - 1))
	}

	return results, nil
}

// findAllOverlapping returns every offset in data where pattern occurs,
// including overlapping occurrences (unlike a single bytes.Index pass).
func findAllOverlapping(data, pattern []byte) []int {
	if len(pattern) == 0 || len(pattern) > len(data) {
		return nil
	}
	var offsets []int
	for i := 0; i+len(pattern) <= len(data); i++ {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			offsets = append(offsets, i)
		}
	}
	return offsets
}

// Init runs a full scan: every cached region is block-scanned for the
// current pattern and results becomes the union, in region/offset order.
func (s *Scan) Init() ([]Result, error) {
	if err := s.checkPattern(); err != nil {
		return nil, err
	}

	var results []Result
	for _, region := range s.regions {
		regionResults, err := s.scanRegion(region)
		if err != nil {
			return nil, newMemoryError(err)
		}
		results = append(results, regionResults...)
	}

	s.results = results
	if s.log != nil {
		s.log.Debugf("scan init: %d regions, %d results", len(s.regions), len(s.results))
	}

	if err := s.refreshWatchlist(); err != nil {
		return nil, err
	}
	return s.results, nil
}

// NextScan narrows results to those whose live leading need bytes still
// equal the pattern. Results are replaced with the freshly read bytes
// (capture-width, not just the needle), which is why next_scan can keep
// more context than it compares.
func (s *Scan) NextScan() ([]Result, error) {
	if err := s.checkPattern(); err != nil {
		return nil, err
	}

	need := len(s.pattern)
	narrowed := make([]Result, 0, len(s.results)/2)
	for _, result := range s.results {
		capture := s.captureSize(len(result.Value))
		val, err := s.io.Read(s.pid, result.Address, capture)
		if err != nil {
			if isProcessAttachErr(err) {
				return nil, newMemoryError(err)
			}
			continue
		}
		if len(val) >= need && bytes.Equal(val[:need], s.pattern) {
			result.ValueType = s.vt
			result.Value = val
			narrowed = append(narrowed, result)
		}
	}

	dropped := len(s.results) - len(narrowed)
	s.results = narrowed
	if s.log != nil {
		s.log.Debugf("scan next: %d kept, %d dropped", len(s.results), dropped)
	}

	if err := s.refreshWatchlist(); err != nil {
		return nil, err
	}
	return s.results, nil
}

// Refresh re-reads live values at every result's address, leaving
// addresses and the set's size unchanged; only Value (and ValueType) may
// change. A per-address read failure other than ProcessAttach leaves that
// result's prior bytes intact.
func (s *Scan) Refresh() ([]Result, error) {
	if err := s.checkPattern(); err != nil {
		return nil, err
	}

	for i := range s.results {
		capture := s.captureSize(len(s.results[i].Value))
		val, err := s.io.Read(s.pid, s.results[i].Address, capture)
		if err != nil {
			if isProcessAttachErr(err) {
				return nil, newMemoryError(err)
			}
			continue
		}
		s.results[i].ValueType = s.vt
		s.results[i].Value = val
	}

	if err := s.refreshWatchlist(); err != nil {
		return nil, err
	}
	return s.results, nil
}

// refreshWatchlist re-reads every watchlist entry's live value, adopting
// the engine's current value type on each refresh so the displayed
// interpretation always tracks the engine.
func (s *Scan) refreshWatchlist() error {
	for i := range s.watchlist {
		capture := s.captureSize(len(s.watchlist[i].Value))
		val, err := s.io.Read(s.pid, s.watchlist[i].Address, capture)
		if err != nil {
			if isProcessAttachErr(err) {
				return newMemoryError(err)
			}
			continue
		}
		s.watchlist[i].ValueType = s.vt
		s.watchlist[i].Value = val
	}
	return nil
}

// AddToWatchlist adds result to the watchlist. Duplicate addresses are a
// no-op.
func (s *Scan) AddToWatchlist(result Result) {
	for _, w := range s.watchlist {
		if w.Address == result.Address {
			return
		}
	}
	s.watchlist = append(s.watchlist, result)
}

// RemoveFromWatchlist removes the watchlist entry at address, if present.
func (s *Scan) RemoveFromWatchlist(address uint64) {
	for i, w := range s.watchlist {
		if w.Address == address {
			s.watchlist = append(s.watchlist[:i], s.watchlist[i+1:]...)
			return
		}
	}
}

// UpdateValue encodes str under the current type and writes it to address
// in the target process.
func (s *Scan) UpdateValue(address uint64, str string) error {
	value, err := s.vt.Parse(str)
	if err != nil {
		return newError(InvalidValue)
	}
	if err := s.io.Write(s.pid, address, value); err != nil {
		return newMemoryError(err)
	}
	return nil
}

// isProcessAttachErr reports whether err, as returned directly by a
// memory.IO call, is a *memory.Error carrying ProcessAttach: the one
// memory failure that must abort an in-progress scan instead of being
// swallowed for the current block/result/watchlist entry.
func isProcessAttachErr(err error) bool {
	var memErr *memory.Error
	return errors.As(err, &memErr) && memErr.Kind == memory.ProcessAttach
}
