package main

import (
	"fmt"
	"log"
	"net"

	"github.com/spf13/cobra"

	"github.com/offloadlab/wiznet/devsim"
	"github.com/offloadlab/wiznet/driver"
	"github.com/offloadlab/wiznet/monitoring"
	"github.com/offloadlab/wiznet/pool"
	"github.com/offloadlab/wiznet/sched"
	"github.com/offloadlab/wiznet/trace"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Bring up the driver and move UDP and TCP traffic.",
	Run:   runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().String("ip", envOr("WIZNET_IP", "192.168.1.20"),
		"local IPv4 address")
	demoCmd.Flags().String("gateway",
		envOr("WIZNET_GATEWAY", "192.168.1.1"), "gateway IPv4 address")
	demoCmd.Flags().String("subnet",
		envOr("WIZNET_SUBNET", "255.255.255.0"), "subnet mask")
	demoCmd.Flags().String("mac",
		envOr("WIZNET_MAC", "02:00:00:12:34:56"), "station address")
	demoCmd.Flags().String("trace", "",
		"record bus transfers into this SQLite database")
	demoCmd.Flags().Bool("monitor", false,
		"serve the monitoring API while the demo runs")
	demoCmd.Flags().Int("monitor-port", 0,
		"port for the monitoring server, 0 picks a free one")
}

func runDemo(cmd *cobra.Command, _ []string) {
	mac, err := net.ParseMAC(flagString(cmd, "mac"))
	if err != nil {
		log.Fatalf("invalid MAC address: %v", err)
	}

	engine := sched.NewSerialEngine()
	dev := devsim.NewDevice()

	drv, err := driver.New("Net", engine, dev, driver.Config{
		MAC:     mac,
		IP:      parseIPv4(cmd, "ip"),
		Gateway: parseIPv4(cmd, "gateway"),
		Subnet:  parseIPv4(cmd, "subnet"),
		Notify: func(n driver.Notification) {
			log.Printf("driver: %s", n)
		},
	})
	if err != nil {
		log.Fatalf("cannot create driver: %v", err)
	}

	if path := flagString(cmd, "trace"); path != "" {
		recorder := trace.NewRecorder(path)
		tracer := trace.NewTracer(engine, recorder, "bus_transfers")
		tracer.Attach(drv.Adaptor())
		defer recorder.Flush()
	}

	if on, _ := cmd.Flags().GetBool("monitor"); on {
		port, _ := cmd.Flags().GetInt("monitor-port")
		m := monitoring.NewMonitor().WithPortNumber(port)
		m.RegisterEngine(engine)
		m.RegisterDriver(drv)
		m.StartServer()
	}

	drv.Start()
	run(engine)

	if !drv.PhyLinkIsUp() {
		log.Fatal("link did not come up")
	}

	demoUDP(engine, dev, drv)
	demoTCP(engine, dev, drv)

	fmt.Printf("demo finished at virtual time %s\n", engine.CurrentTime())
}

func demoUDP(engine sched.Engine, dev *devsim.Device, drv *driver.Driver) {
	conn, status := drv.OpenUDP(5000, nil)
	mustSucceed(status, "open UDP socket")
	run(engine)

	payload := pool.NewBuffer(0)
	payload.Append([]byte("hello from the driver"))
	mustSucceed(conn.SendTo(payload, net.IPv4(192, 168, 1, 30), 7000),
		"send datagram")
	run(engine)

	for _, pkt := range dev.Sent {
		fmt.Printf("device sent %d bytes to %s:%d\n",
			len(pkt.Data), pkt.Dest, pkt.DestPort)
	}

	dev.InjectUDP(7, net.IPv4(192, 168, 1, 40), 9000, []byte("pong"))
	run(engine)

	rx := pool.NewBuffer(0)
	addr, port, status := conn.ReceiveFrom(rx)
	mustSucceed(status, "receive datagram")
	fmt.Printf("received %q from %s:%d\n", rx.Bytes(), addr, port)

	mustSucceed(conn.Close(), "close UDP socket")
	run(engine)
}

func demoTCP(engine sched.Engine, dev *devsim.Device, drv *driver.Driver) {
	conn, status := drv.OpenTCP(6000, nil)
	mustSucceed(status, "open TCP socket")
	run(engine)

	mustSucceed(conn.Connect(net.IPv4(192, 168, 1, 50), 80), "connect")
	run(engine)

	payload := pool.NewBuffer(0)
	payload.Append([]byte("GET / HTTP/1.0\r\n\r\n"))
	mustSucceed(conn.Send(payload), "send stream data")
	run(engine)

	dev.InjectTCP(0, []byte("HTTP/1.0 200 OK\r\n"))
	run(engine)

	rx := pool.NewBuffer(0)
	mustSucceed(conn.Receive(rx), "receive stream data")
	fmt.Printf("received %q over TCP\n", rx.Bytes())

	mustSucceed(conn.Close(), "close TCP socket")
	run(engine)
}

func run(engine sched.Engine) {
	err := engine.Run()
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}
}

func mustSucceed(status driver.Status, what string) {
	if status != driver.StatusSuccess {
		log.Fatalf("cannot %s: %s", what, status)
	}
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func parseIPv4(cmd *cobra.Command, name string) net.IP {
	v := flagString(cmd, name)
	ip := net.ParseIP(v)
	if ip == nil || ip.To4() == nil {
		log.Fatalf("invalid IPv4 address for --%s: %q", name, v)
	}
	return ip
}
