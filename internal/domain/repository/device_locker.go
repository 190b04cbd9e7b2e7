package repository

import "context"

// DeviceLocker serializa la emisión por dispositivo: el contador y el hash previo
// de la cadena exigen un único escritor.
type DeviceLocker interface {
	// Lock devuelve domain.ErrDeviceBusy si otro proceso tiene el candado.
	Lock(ctx context.Context, deviceID string) (release func(context.Context) error, err error)
}
