package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewWriteMessage creates a channel write message
func NewWriteMessage(channel string, value []byte) (*Message, error) {
	return NewMessage(TypeWrite, WriteData{Channel: channel, Value: value})
}

// NewReadMessage creates a channel read request
func NewReadMessage(channel string) (*Message, error) {
	return NewMessage(TypeRead, ReadData{Channel: channel})
}

// NewSubscribeMessage creates a subscription change message
func NewSubscribeMessage(channel string, enabled bool) (*Message, error) {
	return NewMessage(TypeSubscribe, SubscribeData{Channel: channel, Enabled: enabled})
}

// NewWelcomeMessage creates a session accepted message
func NewWelcomeMessage(sessionID, device string) (*Message, error) {
	return NewMessage(TypeWelcome, WelcomeData{SessionID: sessionID, Device: device})
}

// NewRejectMessage creates a connection refused message
func NewRejectMessage(reason string) (*Message, error) {
	return NewMessage(TypeReject, RejectData{Reason: reason})
}

// NewValueMessage creates a channel value message
func NewValueMessage(channel string, value []byte, notify bool) (*Message, error) {
	return NewMessage(TypeValue, ValueData{Channel: channel, Value: value, Notify: notify})
}

// NewStatusMessage creates a dashboard status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetWriteData extracts write data from a message
func (m *Message) GetWriteData() (*WriteData, error) {
	var data WriteData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetReadData extracts read data from a message
func (m *Message) GetReadData() (*ReadData, error) {
	var data ReadData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSubscribeData extracts subscription data from a message
func (m *Message) GetSubscribeData() (*SubscribeData, error) {
	var data SubscribeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetWelcomeData extracts welcome data from a message
func (m *Message) GetWelcomeData() (*WelcomeData, error) {
	var data WelcomeData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetRejectData extracts reject data from a message
func (m *Message) GetRejectData() (*RejectData, error) {
	var data RejectData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetValueData extracts value data from a message
func (m *Message) GetValueData() (*ValueData, error) {
	var data ValueData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
