package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// MaxLineSize 单行最大长度
const MaxLineSize = 4 << 20

// ErrNotObject 行内容不是 JSON 对象
var ErrNotObject = errors.New("record: line is not a JSON object")

// ScanStats 扫描统计，跳过的行可被测试断言。
type ScanStats struct {
	Lines   int          `json:"lines"`
	Blank   int          `json:"blank"`
	Skipped int          `json:"skipped"`
	Records int          `json:"records"`
	ByType  map[Type]int `json:"by_type"`
}

type rawRecord struct {
	Type   string  `json:"type"`
	Metric string  `json:"metric"`
	Data   rawData `json:"data"`
}

type rawData struct {
	Time       any            `json:"time,omitempty"`
	Value      any            `json:"value,omitempty"`
	Tags       map[string]any `json:"tags,omitempty"`
	Name       string         `json:"name,omitempty"`
	Met        *bool          `json:"met,omitempty"`
	Type       string         `json:"type,omitempty"`
	Contains   string         `json:"contains,omitempty"`
	Thresholds []string       `json:"thresholds,omitempty"`
}

// Decode 解码一行记录。行首必须是 '{'。
func Decode(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Record{}, ErrNotObject
	}

	var raw rawRecord
	if err := sonic.Unmarshal(line, &raw); err != nil {
		return Record{}, fmt.Errorf("record: decode: %w", err)
	}

	rec := Record{
		Type:   Type(raw.Type),
		Metric: raw.Metric,
		Data: Data{
			Tags:       normalizeTags(raw.Data.Tags),
			Name:       raw.Data.Name,
			Met:        raw.Data.Met,
			MetricType: raw.Data.Type,
			Contains:   raw.Data.Contains,
			Thresholds: raw.Data.Thresholds,
		},
	}
	if v, ok := raw.Data.Value.(float64); ok {
		rec.Data.Value = &v
	}
	rec.Data.Time = parseTime(raw.Data.Time)
	return rec, nil
}

// parseTime 支持 RFC3339 字符串和毫秒时间戳
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}

// Scanner 逐行读取记录。空行忽略，无法解码或超过 MaxLineSize 的行丢弃并计数。
// 序列只能消费一次。
type Scanner struct {
	r     *bufio.Reader
	buf   []byte
	rec   Record
	stats ScanStats
	err   error
	done  bool
}

// NewScanner 创建扫描器
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:     bufio.NewReaderSize(r, 64*1024),
		stats: ScanStats{ByType: make(map[Type]int)},
	}
}

// readLine 读取一行。超长行的内容被丢弃，只返回 tooLong。
func (s *Scanner) readLine() (line []byte, tooLong bool, err error) {
	s.buf = s.buf[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		if !tooLong {
			n := len(chunk)
			if n > 0 && chunk[n-1] == '\n' {
				n--
			}
			if len(s.buf)+n > MaxLineSize {
				tooLong = true
				s.buf = s.buf[:0]
			} else {
				s.buf = append(s.buf, chunk...)
			}
		}

		switch {
		case err == nil:
			return s.buf, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(s.buf) > 0 || tooLong):
			return s.buf, tooLong, nil
		default:
			return nil, false, err
		}
	}
}

// Scan 前进到下一条有效记录
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	for {
		line, tooLong, err := s.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			s.done = true
			return false
		}

		s.stats.Lines++
		if tooLong {
			s.stats.Skipped++
			continue
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			s.stats.Blank++
			continue
		}
		rec, err := Decode(line)
		if err != nil {
			s.stats.Skipped++
			continue
		}
		s.stats.Records++
		s.stats.ByType[rec.Type]++
		s.rec = rec
		return true
	}
}

// Record 返回当前记录
func (s *Scanner) Record() Record {
	return s.rec
}

// Err 返回读取错误，解码失败不算错误。
func (s *Scanner) Err() error {
	return s.err
}

// Stats 返回扫描统计
func (s *Scanner) Stats() ScanStats {
	out := s.stats
	out.ByType = make(map[Type]int, len(s.stats.ByType))
	for k, v := range s.stats.ByType {
		out.ByType[k] = v
	}
	return out
}

// All 以迭代器形式返回剩余记录
func (s *Scanner) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for s.Scan() {
			if !yield(s.rec) {
				return
			}
		}
	}
}

// Encoder 以 k6 JSON 输出格式写入记录
type Encoder struct {
	w  *bufio.Writer
	mu sync.Mutex
}

// NewEncoder 创建编码器
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Encode 写入一条记录
func (e *Encoder) Encode(rec Record) error {
	raw := rawRecord{
		Type:   string(rec.Type),
		Metric: rec.Metric,
		Data: rawData{
			Name:       rec.Data.Name,
			Met:        rec.Data.Met,
			Type:       rec.Data.MetricType,
			Contains:   rec.Data.Contains,
			Thresholds: rec.Data.Thresholds,
		},
	}
	if !rec.Data.Time.IsZero() {
		raw.Data.Time = rec.Data.Time.Format(time.RFC3339Nano)
	}
	if rec.Data.Value != nil {
		raw.Data.Value = *rec.Data.Value
	}
	if len(rec.Data.Tags) > 0 {
		raw.Data.Tags = make(map[string]any, len(rec.Data.Tags))
		for k, v := range rec.Data.Tags {
			raw.Data.Tags[k] = v
		}
	}

	data, err := sonic.Marshal(raw)
	if err != nil {
		return fmt.Errorf("record: encode: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	return e.w.WriteByte('\n')
}

// Flush 刷新缓冲
func (e *Encoder) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Flush()
}
