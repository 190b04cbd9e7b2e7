package entity

import "time"

// ChainState último eslabón emitido por un dispositivo (EGS).
// La cadena es una lista enlazada ordenada por contador.
type ChainState struct {
	DeviceID    string
	LastHash    string
	LastCounter int64
	UpdatedAt   time.Time
}
