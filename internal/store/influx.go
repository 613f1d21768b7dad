package store

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

// activitiesMeasurement is the time-series measurement name
const activitiesMeasurement = "activities"

// point is one per-second slice of a flow
type point struct {
	Seconds int64
	Bytes   float64
	Packets float64
	Flows   float64
}

// Influx is the time-series store, written through the blocking API
// against a 1.x-compatible endpoint.
type Influx struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// InfluxParams locates a 1.x-compatible server and database
type InfluxParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// OpenInflux creates a client for the configured server. With a 1.x
// server the token is user:password and the bucket is the database
// name.
func OpenInflux(p InfluxParams) *Influx {
	url := fmt.Sprintf("http://%s:%d", p.Host, p.Port)
	token := fmt.Sprintf("%s:%s", p.User, p.Password)
	client := influxdb2.NewClient(url, token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking("", p.DBName),
	}
}

// WriteActivity expands one flow into per-second points and writes
// them to the activities measurement.
func (i *Influx) WriteActivity(ctx context.Context, row *FlowRow) error {
	tags := map[string]string{
		"agent":    row.AgentAddress,
		"ifname":   row.Key.Ifname,
		"src_ip":   row.Key.SrcIP,
		"dst_ip":   row.Key.DstIP,
		"proto":    strconv.Itoa(int(row.Key.Proto)),
		"src_port": strconv.Itoa(int(row.Key.SrcPort)),
		"dst_port": strconv.Itoa(int(row.Key.DstPort)),
		"tos":      strconv.Itoa(int(row.Key.TOS)),
		"flags":    row.Entry.Flags,
	}

	for _, pt := range expand(row.Entry.StartTime, row.Entry.EndTime, row.Entry.Bytes, row.Entry.Packets) {
		fields := map[string]interface{}{
			"bytes":   pt.Bytes,
			"packets": pt.Packets,
			"flows":   pt.Flows,
		}
		p := influxdb2.NewPoint(activitiesMeasurement, tags, fields, time.Unix(pt.Seconds, 0).UTC())
		if err := i.write.WritePoint(ctx, p); err != nil {
			return errors.Wrap(err, "writing activity point")
		}
	}
	return nil
}

// expand slices a flow into one point per integer second of its
// lifetime, dividing the counters uniformly. A flow lasting at most
// one second yields a single point carrying the full counters.
func expand(startTime, endTime float64, bytes, packets int64) []point {
	s0 := int64(math.Floor(startTime))
	s1 := int64(math.Ceil(endTime))
	d := s1 - s0
	if d <= 1 {
		return []point{{
			Seconds: s0,
			Bytes:   float64(bytes),
			Packets: float64(packets),
			Flows:   1,
		}}
	}
	points := make([]point, 0, d)
	for n := int64(0); n < d; n++ {
		points = append(points, point{
			Seconds: s0 + n,
			Bytes:   float64(bytes) / float64(d),
			Packets: float64(packets) / float64(d),
			Flows:   1,
		})
	}
	return points
}

// Close shuts the client down
func (i *Influx) Close() {
	i.client.Close()
}
