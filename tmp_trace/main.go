package main

import (
	"fmt"

	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/adc"
	"github.com/yifeng-ethz/alt-temp-sense-controller/internal/tsense"
)

func main() {
	mock := &adc.Mock{}
	ctrl := tsense.New(tsense.Params{IntervalTicks: 4, ClearTicks: 2})
	lastOut := tsense.Output{Wait: true, Clear: true, Enable: true}
	for i := 1; i <= 30; i++ {
		if i == 10 {
			mock.Set(tsense.EncodeOffset(21))
			fmt.Println("         --- mock.Set(EncodeOffset(21)) ---")
		}
		clearIn := lastOut.Clear
		done, raw := mock.Tick(lastOut.Enable, clearIn)
		out := ctrl.Tick(tsense.Input{ConvDone: done, ConvRaw: raw})
		lastOut = out
		fmt.Printf("tick %2d: clearIn=%5v done=%5v raw=%02x -> reading=%3d enabled=%v clearOut=%v\n",
			i, clearIn, done, raw, ctrl.Reading(), ctrl.Enabled(), out.Clear)
	}
}
