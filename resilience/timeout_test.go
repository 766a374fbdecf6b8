package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithDeadline(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		op      func(context.Context) (int, error)
		want    int
		wantErr error
	}{
		{
			name: "fast call",
			d:    time.Second,
			op:   func(context.Context) (int, error) { return 7, nil },
			want: 7,
		},
		{
			name: "zero deadline is unbounded",
			d:    0,
			op: func(ctx context.Context) (int, error) {
				if _, ok := ctx.Deadline(); ok {
					return 0, errors.New("unexpected deadline")
				}
				return 1, nil
			},
			want: 1,
		},
		{
			name: "respects context",
			d:    10 * time.Millisecond,
			op: func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			},
			wantErr: ErrTimeout,
		},
		{
			name: "ignores context",
			d:    10 * time.Millisecond,
			op: func(context.Context) (int, error) {
				time.Sleep(200 * time.Millisecond)
				return 1, nil
			},
			wantErr: ErrTimeout,
		},
		{
			name:    "hook error passes through",
			d:       time.Second,
			op:      func(context.Context) (int, error) { return 0, errDown },
			wantErr: errDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withDeadline(context.Background(), tt.d, tt.op)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("withDeadline = %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

func TestWithDeadline_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := withDeadline(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want plain context.Canceled", err)
	}
}

func TestWithDeadline_ParentDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := withDeadline(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want the caller's deadline", err)
	}
}
