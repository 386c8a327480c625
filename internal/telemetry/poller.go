package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/logging"
)

// DefaultInterval is the polling period.
const DefaultInterval = time.Second

// Sensor identifies one of the four readings.
type Sensor int

const (
	Temperature Sensor = iota
	Humidity
	SoilMoisture
	Light
)

// Sensors is the fixed order in which the charts are updated.
var Sensors = [...]Sensor{Temperature, Humidity, SoilMoisture, Light}

// Title is the chart title.
func (s Sensor) Title() string {
	switch s {
	case Temperature:
		return "Temperatura"
	case Humidity:
		return "Umidade do ar"
	case SoilMoisture:
		return "Umidade do solo"
	case Light:
		return "Luminosidade"
	default:
		return "?"
	}
}

// Unit is appended to displayed values.
func (s Sensor) Unit() string {
	if s == Temperature {
		return "°C"
	}
	return "%"
}

// Key is the field name in the /readsensors document.
func (s Sensor) Key() string {
	switch s {
	case Temperature:
		return "temp"
	case Humidity:
		return "hum"
	case SoilMoisture:
		return "soil"
	case Light:
		return "lumi"
	default:
		return ""
	}
}

// Pick returns this sensor's reading from r.
func (s Sensor) Pick(r device.Readings) device.Reading {
	switch s {
	case Temperature:
		return r.Temp
	case Humidity:
		return r.Hum
	case SoilMoisture:
		return r.Soil
	case Light:
		return r.Lumi
	default:
		return device.Reading{}
	}
}

// Reader is the part of the device client the poller uses.
type Reader interface {
	ReadSensors(ctx context.Context) (*device.Readings, error)
}

// Result is the outcome of one poll, tagged with its request sequence.
type Result struct {
	Seq      uint64
	At       time.Time
	Readings device.Readings
	Err      error
}

// Poller holds the latest readings and the rolling chart series. Requests
// are numbered; a response older than the newest one already applied is
// dropped so a slow poll never overwrites fresher data.
//
// Begin and Apply must be called from a single goroutine; Fetch may run
// anywhere.
type Poller struct {
	reader Reader

	issued  uint64
	applied uint64
	failed  uint64

	series  [len(Sensors)]*Series
	display [len(Sensors)]string
	lastAt  time.Time
	lastErr error

	now func() time.Time
}

// NewPoller creates a poller with empty series of SeriesCap points.
func NewPoller(reader Reader) *Poller {
	p := &Poller{reader: reader, now: time.Now}
	for i := range p.series {
		p.series[i] = NewSeries(SeriesCap)
		p.display[i] = ErrorMarker
	}
	return p
}

// Begin allocates the sequence number for a new request.
func (p *Poller) Begin() uint64 {
	p.issued++
	return p.issued
}

// Fetch performs request seq. It touches no poller state.
func (p *Poller) Fetch(ctx context.Context, seq uint64) Result {
	readings, err := p.reader.ReadSensors(ctx)
	res := Result{Seq: seq, At: p.now(), Err: err}
	if err == nil {
		res.Readings = *readings
	}
	return res
}

// Apply folds a result into the displays and series. It returns false when
// the result was a failure or stale; prior values are kept in both cases.
// A failure only becomes LastError when it is newer than every result seen
// so far, and a success only clears an older failure.
func (p *Poller) Apply(res Result) bool {
	if res.Seq <= p.applied {
		logging.Debug("Discarding stale sensor reading",
			zap.Uint64("seq", res.Seq),
			zap.Uint64("applied", p.applied),
			zap.Error(res.Err),
		)
		return false
	}
	if res.Err != nil {
		logging.Warn("Sensor poll failed", zap.Uint64("seq", res.Seq), zap.Error(res.Err))
		if res.Seq > p.failed {
			p.failed = res.Seq
			p.lastErr = res.Err
		}
		return false
	}

	p.applied = res.Seq
	p.lastAt = res.At
	if res.Seq > p.failed {
		p.lastErr = nil
	}
	for i, s := range Sensors {
		r := s.Pick(res.Readings)
		p.display[i] = FormatReading(r)
		p.series[i].Push(Point{At: res.At, Value: r.Float()})
	}
	return true
}

// Poll runs one request synchronously.
func (p *Poller) Poll(ctx context.Context) (Result, bool) {
	res := p.Fetch(ctx, p.Begin())
	return res, p.Apply(res)
}

// Display returns the formatted value for s, or ErrorMarker before the first
// successful poll.
func (p *Poller) Display(s Sensor) string { return p.display[s] }

// Series returns the chart series for s.
func (p *Poller) Series(s Sensor) *Series { return p.series[s] }

// LastUpdate is the time of the newest applied sample.
func (p *Poller) LastUpdate() time.Time { return p.lastAt }

// LastError is the error of the latest failed poll, cleared by the next
// successful one.
func (p *Poller) LastError() error { return p.lastErr }

// Applied is the sequence number of the newest applied result.
func (p *Poller) Applied() uint64 { return p.applied }
