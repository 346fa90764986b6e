package server_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"meep/fpgarelay/mocks"
	mocks_tcp "meep/fpgarelay/mocks/tcp"
	"meep/fpgarelay/pkg/backend"
	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/log"
	"meep/fpgarelay/pkg/relay"
	"meep/fpgarelay/pkg/server"
)

// send writes payload to addr and returns everything read until the server
// closes the connection.
func send(addr, payload string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, payload); err != nil {
		return "", err
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	resp, err := io.ReadAll(conn)
	return string(resp), err
}

var _ = Describe("Relay server", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		cfg    *config.Shared
		srvCfg *config.Server
		srv    *server.Server
		done   chan error
	)

	start := func(inv relay.Invoker) string {
		var err error
		srv, err = server.New(ctx, cfg, srvCfg, relay.NewHandler(cfg, srvCfg, inv).Handle)
		Expect(err).NotTo(HaveOccurred())

		done = make(chan error, 1)
		go func() { done <- srv.Serve() }()
		return srv.Addr().String()
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		cfg = &config.Shared{
			Protocol: config.ProtoTCP,
			Host:     "127.0.0.1",
			Port:     0,
			Timeout:  5 * time.Second,
			Logger:   log.New(GinkgoWriter, true),
		}
		srvCfg = &config.Server{MaxLineBytes: config.DefaultMaxLineBytes}
		srv = nil
	})

	AfterEach(func() {
		cancel()
		if srv != nil {
			Eventually(done).Should(Receive(BeNil()))
			srv.Wait()
		}
	})

	Context("single requests", func() {
		It("returns the processed value", func() {
			addr := start(mocks.NewMockBackend())
			Expect(send(addr, "21\n")).To(Equal("42"))
		})

		It("answers without a trailing newline", func() {
			addr := start(mocks.NewFixedBackend(backend.OK("7")))
			resp, err := send(addr, "1\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("7"))
		})

		It("reports a failing backend with the Error prefix", func() {
			addr := start(mocks.NewMockBackend())
			Expect(send(addr, "abc\n")).To(Equal("Error: bad input"))
		})

		It("reports a timed out backend with the fixed literal", func() {
			addr := start(mocks.NewFixedBackend(backend.Timeout()))
			Expect(send(addr, "21\n")).To(Equal("Timeout: FPGA processing took too long"))
		})

		It("reports an unreachable backend with the SSH Error prefix", func() {
			addr := start(mocks.NewFixedBackend(backend.InvocationError("connect to host raju port 22: No route to host")))
			Expect(send(addr, "21\n")).To(Equal("SSH Error: connect to host raju port 22: No route to host"))
		})

		It("closes an empty request without writing anything", func() {
			m := mocks.NewMockBackend()
			addr := start(m)

			resp, err := send(addr, "\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(BeEmpty())
			Expect(m.Calls()).To(BeEmpty())
		})

		It("accepts a request that ends at EOF without a newline", func() {
			addr := start(mocks.NewMockBackend())

			conn, err := net.Dial("tcp", addr)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			_, err = io.WriteString(conn, "21")
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.(*net.TCPConn).CloseWrite()).To(Succeed())

			resp, err := io.ReadAll(conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(resp)).To(Equal("42"))
		})

		It("drops oversized requests without a response", func() {
			srvCfg.MaxLineBytes = 16
			m := mocks.NewMockBackend()
			addr := start(m)

			resp, _ := send(addr, fmt.Sprintf("%040d\n", 1))
			Expect(resp).To(BeEmpty())
			Expect(m.Calls()).To(BeEmpty())
		})

		It("writes exactly one response per connection", func() {
			m := mocks.NewMockBackend()
			addr := start(m)

			conn, err := net.Dial("tcp", addr)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			_, err = io.WriteString(conn, "21\n22\n")
			Expect(err).NotTo(HaveOccurred())

			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			resp, err := io.ReadAll(conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(resp)).To(Equal("42"))
			Expect(m.Calls()).To(Equal([]string{"21"}))
		})
	})

	Context("with a real subprocess backend", func() {
		BeforeEach(func() {
			if runtime.GOOS == "windows" {
				Skip("requires /bin/sh")
			}
		})

		It("doubles the value read from stdin", func() {
			inv := backend.New(&config.Backend{
				Program: "/bin/sh",
				Args:    []string{"-c", `read v; echo $((v * 2))`},
				Timeout: 5 * time.Second,
			}, cfg.Logger)

			addr := start(inv)
			Expect(send(addr, "21\n")).To(Equal("42"))
		})

		It("times out a hanging backend promptly", func() {
			inv := backend.New(&config.Backend{
				Program: "/bin/sh",
				Args:    []string{"-c", "sleep 30"},
				Timeout: 200 * time.Millisecond,
			}, cfg.Logger)

			addr := start(inv)
			began := time.Now()
			Expect(send(addr, "21\n")).To(Equal("Timeout: FPGA processing took too long"))
			Expect(time.Since(began)).To(BeNumerically("<", 5*time.Second))
		})
	})

	Context("concurrency", func() {
		It("serves 50 concurrent clients in parallel", func() {
			const n = 50
			delay := 200 * time.Millisecond

			addr := start(&mocks.MockBackend{Respond: mocks.Slow(delay, time.Minute, mocks.Doubler)})

			var wg sync.WaitGroup
			errs := make(chan error, n)
			began := time.Now()

			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					resp, err := send(addr, strconv.Itoa(i)+"\n")
					if err != nil {
						errs <- err
						return
					}
					if resp != strconv.Itoa(2*i) {
						errs <- fmt.Errorf("client %d got %q", i, resp)
					}
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(time.Since(began)).To(BeNumerically("<", n*delay/4))
		})

		It("keeps accepting while every handler is busy", func() {
			release := make(chan struct{})
			addr := start(&mocks.MockBackend{Respond: func(ctx context.Context, p string) backend.Outcome {
				select {
				case <-release:
				case <-ctx.Done():
				}
				return mocks.Doubler(ctx, p)
			}})

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = send(addr, "1\n")
				}()
			}

			Eventually(srv.Active).Should(Equal(5))
			close(release)
			wg.Wait()
			Eventually(srv.Active).Should(BeZero())
		})

		It("caps concurrent handlers at MaxConns", func() {
			srvCfg.MaxConns = 2

			var current, peak atomic.Int32
			addr := start(&mocks.MockBackend{Respond: func(ctx context.Context, p string) backend.Outcome {
				n := current.Add(1)
				defer current.Add(-1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(100 * time.Millisecond)
				return mocks.Doubler(ctx, p)
			}})

			var wg sync.WaitGroup
			for i := 0; i < 6; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					Expect(send(addr, strconv.Itoa(i)+"\n")).To(Equal(strconv.Itoa(2 * i)))
				}(i)
			}
			wg.Wait()

			Expect(peak.Load()).To(BeNumerically("==", 2))
		})

		It("closes connections that wait too long for a slot", func() {
			srvCfg.MaxConns = 1
			cfg.Timeout = 100 * time.Millisecond

			release := make(chan struct{})
			defer close(release)
			addr := start(&mocks.MockBackend{Respond: func(ctx context.Context, p string) backend.Outcome {
				<-release
				return mocks.Doubler(ctx, p)
			}})

			first, err := net.Dial("tcp", addr)
			Expect(err).NotTo(HaveOccurred())
			defer first.Close()
			_, _ = io.WriteString(first, "1\n")
			Eventually(srv.Active).Should(Equal(1))

			// the unread request may turn the close into a reset
			resp, _ := send(addr, "2\n")
			Expect(resp).To(BeEmpty())
		})
	})

	Context("lifecycle", func() {
		It("fails to start when the port is taken", func() {
			taken, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			defer taken.Close()

			cfg.Port = taken.Addr().(*net.TCPAddr).Port
			_, err = server.New(ctx, cfg, srvCfg, relay.NewHandler(cfg, srvCfg, mocks.NewMockBackend()).Handle)
			Expect(err).To(HaveOccurred())
		})

		It("stops accepting when the context is cancelled", func() {
			addr := start(mocks.NewMockBackend())
			Expect(send(addr, "1\n")).To(Equal("2"))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
			srv = nil

			_, err := net.DialTimeout("tcp", addr, time.Second)
			Expect(err).To(HaveOccurred())
		})

		It("kills in-flight backends on shutdown", func() {
			started := make(chan struct{})
			addr := start(&mocks.MockBackend{Respond: func(ctx context.Context, p string) backend.Outcome {
				close(started)
				return mocks.Slow(time.Minute, time.Minute, mocks.Doubler)(ctx, p)
			}})

			respCh := make(chan string, 1)
			go func() {
				resp, _ := send(addr, "1\n")
				respCh <- resp
			}()

			Eventually(started).Should(BeClosed())
			cancel()

			var resp string
			Eventually(respCh, 5*time.Second).Should(Receive(&resp))
			Expect(resp).To(HavePrefix(relay.SSHErrorPrefix + "cancelled"))
		})
	})

	Context("transient accept errors", func() {
		It("backs off and keeps serving", func() {
			mockNet := mocks_tcp.NewMockTCPNetwork()
			nl, err := mockNet.Listen(ctx, "127.0.0.1:9999")
			Expect(err).NotTo(HaveOccurred())

			l := nl.(*mocks_tcp.MockTCPListener)
			l.FailNext(
				errors.New("accept: too many open files"),
				errors.New("accept: too many open files"),
				errors.New("accept: connection aborted"),
			)

			srv = server.NewWithListener(ctx, cfg, srvCfg, nl, relay.NewHandler(cfg, srvCfg, mocks.NewMockBackend()).Handle)
			done = make(chan error, 1)
			go func() { done <- srv.Serve() }()

			conn, err := mockNet.Dial(ctx, "127.0.0.1:9999", 2*time.Second)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			_, err = io.WriteString(conn, "21\n")
			Expect(err).NotTo(HaveOccurred())
			resp, err := io.ReadAll(conn)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(resp)).To(Equal("42"))
			Expect(l.Accepts()).To(BeNumerically(">=", 4))
		})
	})
})
