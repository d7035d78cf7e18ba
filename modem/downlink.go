package modem

// Downlink is an application payload received after an uplink.
type Downlink struct {
	Port    uint8
	Payload []byte
}

// DownlinkHandler receives downlinks. It is called after the Modem lock is
// released, so it may call back into the Modem.
type DownlinkHandler interface {
	HandleDownlink(Downlink)
}

// DownlinkHandlerFunc adapts a function to DownlinkHandler.
type DownlinkHandlerFunc func(Downlink)

func (f DownlinkHandlerFunc) HandleDownlink(d Downlink) {
	f(d)
}

// OnDownlink replaces the downlink handler. A nil handler discards
// downlinks.
func (m *Modem) OnDownlink(h DownlinkHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}
