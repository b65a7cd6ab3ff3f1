package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestParseProtocol tests protocol name parsing.
func TestParseProtocol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Protocol
		wantErr bool
	}{
		{name: "tcp", input: "tcp", want: ProtocolTCP},
		{name: "upper case udp", input: "UDP", want: ProtocolUDP},
		{name: "surrounding spaces", input: " tcp ", want: ProtocolTCP},
		{name: "unknown protocol", input: "sctp", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseProtocol(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProtocol) {
					t.Fatalf("expected ErrInvalidProtocol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestStatus tests status string conversion in both directions.
func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("String and ParseStatus agree", func(t *testing.T) {
		t.Parallel()

		for _, s := range []Status{StatusOpen, StatusClosed, StatusFiltered} {
			parsed, err := ParseStatus(s.String())
			if err != nil {
				t.Fatalf("ParseStatus(%q): %v", s.String(), err)
			}
			if parsed != s {
				t.Errorf("expected %v, got %v", s, parsed)
			}
		}
	})

	t.Run("zero value is filtered", func(t *testing.T) {
		t.Parallel()

		var s Status
		if s != StatusFiltered {
			t.Errorf("expected zero value to be filtered, got %v", s)
		}
	})

	t.Run("unknown word is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseStatus("open|filtered"); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("expected ErrInvalidStatus, got %v", err)
		}
	})

	t.Run("JSON carries the status word", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(PortResult{Port: 22, Status: StatusOpen, Service: "ssh"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if !strings.Contains(string(data), `"status":"open"`) {
			t.Errorf("expected status word in JSON, got %s", data)
		}

		var back PortResult
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if back.Status != StatusOpen {
			t.Errorf("expected open after unmarshal, got %v", back.Status)
		}
	})
}

// TestPortRange tests range validation and size.
func TestPortRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		r       PortRange
		wantLen int
		wantErr bool
	}{
		{name: "single port", r: PortRange{Start: 80, End: 80}, wantLen: 1},
		{name: "full range", r: PortRange{Start: 1, End: 65535}, wantLen: 65535},
		{name: "zero start", r: PortRange{Start: 0, End: 10}, wantLen: 11, wantErr: true},
		{name: "end too large", r: PortRange{Start: 1, End: 65536}, wantLen: 65536, wantErr: true},
		{name: "reversed", r: PortRange{Start: 10, End: 1}, wantLen: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.r.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidPortRange) {
				t.Errorf("expected ErrInvalidPortRange, got %v", err)
			}
			if got := tt.r.Len(); got != tt.wantLen {
				t.Errorf("expected Len %d, got %d", tt.wantLen, got)
			}
		})
	}

	if got := (PortRange{Start: 9000, End: 9002}).String(); got != "9000-9002" {
		t.Errorf("expected 9000-9002, got %q", got)
	}

	r := PortRange{Start: 9000, End: 9002}
	for port, want := range map[int]bool{8999: false, 9000: true, 9001: true, 9002: true, 9003: false} {
		if got := r.Contains(port); got != want {
			t.Errorf("Contains(%d) = %v, want %v", port, got, want)
		}
	}
}

// TestScanRequestValidate tests request validation.
func TestScanRequestValidate(t *testing.T) {
	t.Parallel()

	valid := ScanRequest{
		Target:   "127.0.0.1",
		Ports:    PortRange{Start: 1, End: 1024},
		Protocol: ProtocolTCP,
		Workers:  100,
		Timeout:  time.Second,
	}

	tests := []struct {
		name    string
		mutate  func(r *ScanRequest)
		wantErr error
	}{
		{name: "valid request", mutate: func(_ *ScanRequest) {}},
		{name: "empty target", mutate: func(r *ScanRequest) { r.Target = "" }, wantErr: ErrEmptyTarget},
		{name: "hostname target", mutate: func(r *ScanRequest) { r.Target = "example.com" }, wantErr: ErrInvalidTarget},
		{name: "ipv6 target", mutate: func(r *ScanRequest) { r.Target = "::1" }, wantErr: ErrInvalidTarget},
		{name: "bad range", mutate: func(r *ScanRequest) { r.Ports = PortRange{Start: 5, End: 1} }, wantErr: ErrInvalidPortRange},
		{name: "bad protocol", mutate: func(r *ScanRequest) { r.Protocol = "icmp" }, wantErr: ErrInvalidProtocol},
		{name: "zero workers", mutate: func(r *ScanRequest) { r.Workers = 0 }, wantErr: ErrInvalidWorkers},
		{name: "zero timeout", mutate: func(r *ScanRequest) { r.Timeout = 0 }, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestScanReport tests report helpers.
func TestScanReport(t *testing.T) {
	t.Parallel()

	report := &ScanReport{
		Results: []PortResult{
			{Port: 443, Status: StatusOpen, Service: "https"},
			{Port: 22, Status: StatusOpen, Service: "ssh"},
			{Port: 23, Status: StatusClosed},
			{Port: 25, Status: StatusFiltered},
		},
	}

	report.Sort()
	for i := 1; i < len(report.Results); i++ {
		if report.Results[i-1].Port >= report.Results[i].Port {
			t.Fatalf("results not sorted: %v", report.Results)
		}
	}

	counts := report.Counts()
	if counts[StatusOpen] != 2 || counts[StatusClosed] != 1 || counts[StatusFiltered] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	open := report.OpenPorts()
	if len(open) != 2 || open[0].Port != 22 || open[1].Port != 443 {
		t.Errorf("unexpected open ports: %v", open)
	}

	if res, ok := report.Result(23); !ok || res.Status != StatusClosed {
		t.Errorf("expected closed result for 23, got %v (ok=%v)", res, ok)
	}
	if _, ok := report.Result(80); ok {
		t.Error("expected no result for port 80")
	}
}
