package monitoring

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/offloadlab/wiznet/devsim"
	"github.com/offloadlab/wiznet/driver"
	"github.com/offloadlab/wiznet/sched"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *sched.SerialEngine
		drv    *driver.Driver
	)

	BeforeEach(func() {
		engine = sched.NewSerialEngine()
		dev := devsim.NewDevice()

		var err error
		drv, err = driver.New("Net", engine, dev, driver.Config{
			MAC:     net.HardwareAddr{0x02, 0x00, 0x00, 0x12, 0x34, 0x56},
			IP:      net.IPv4(192, 168, 1, 20),
			Gateway: net.IPv4(192, 168, 1, 1),
			Subnet:  net.IPv4(255, 255, 255, 0),
		})
		Expect(err).To(BeNil())

		drv.Start()
		Expect(engine.Run()).To(Succeed())

		m = NewMonitor()
		m.RegisterEngine(engine)
		m.RegisterDriver(drv)
	})

	It("should report the virtual time", func() {
		w := httptest.NewRecorder()
		m.now(w, nil)

		var rsp struct {
			NowNS int64 `json:"now_ns"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.NowNS).To(Equal(engine.CurrentTime().Nanoseconds()))
	})

	It("should list registered drivers", func() {
		w := httptest.NewRecorder()
		m.listDrivers(w, nil)

		Expect(w.Body.String()).To(Equal(`["Net"]`))
	})

	It("should report the socket pool of a driver", func() {
		_, status := drv.OpenUDP(5000, nil)
		Expect(status).To(Equal(driver.StatusSuccess))
		Expect(engine.Run()).To(Succeed())

		r := httptest.NewRequest(http.MethodGet, "/api/sockets/Net", nil)
		r = mux.SetURLVars(r, map[string]string{"name": "Net"})
		w := httptest.NewRecorder()
		m.listSockets(w, r)

		var infos []driver.SocketInfo
		Expect(json.Unmarshal(w.Body.Bytes(), &infos)).To(Succeed())
		Expect(infos).To(HaveLen(8))
		Expect(infos[7].Protocol).To(Equal("udp"))
		Expect(infos[7].LocalPort).To(Equal(uint16(5000)))
	})

	It("should 404 on an unknown driver", func() {
		r := httptest.NewRequest(http.MethodGet, "/api/sockets/Other", nil)
		r = mux.SetURLVars(r, map[string]string{"name": "Other"})
		w := httptest.NewRecorder()
		m.listSockets(w, r)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
