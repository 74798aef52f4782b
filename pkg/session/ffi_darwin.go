//go:build darwin

package session

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreFoundation -framework IOKit -framework Foundation -lIOReport
#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/IOKitLib.h>
#include <stdint.h>

typedef struct IOReportSubscriptionRef* IOReportSubscriptionRef;

extern CFDictionaryRef IOReportCopyChannelsInGroup(CFStringRef group, CFStringRef subgroup, uint64_t a, uint64_t b, uint64_t c);
extern IOReportSubscriptionRef IOReportCreateSubscription(void* a, CFMutableDictionaryRef channels, CFMutableDictionaryRef* out, uint64_t d, CFTypeRef e);
extern CFDictionaryRef IOReportCreateSamples(IOReportSubscriptionRef sub, CFMutableDictionaryRef channels, CFTypeRef unused);
extern CFDictionaryRef IOReportCreateSamplesDelta(CFDictionaryRef a, CFDictionaryRef b, CFTypeRef unused);
extern int64_t IOReportSimpleGetIntegerValue(CFDictionaryRef item, int32_t idx);

typedef struct {
	double cpuPowerWatts;
	double gpuPowerWatts;
	double anePowerWatts;
	double gpuFreqMHz;
	double socTempC;
	double aneOpsPerSec;
	int thermalState;
} darwinSocMetrics;

int allsmi_ioreport_open();
darwinSocMetrics allsmi_ioreport_sample();
void allsmi_ioreport_close();
int allsmi_ioreport_thermal_state();
*/
import "C"

import "errors"

// darwinHandle drives the IOReport subscription and SMC thermal-state
// query. Every method must run on the goroutine that called open, per
// ffi.go's contract.
type darwinHandle struct {
	opened bool
}

func newFFIHandle() ffiHandle {
	return &darwinHandle{}
}

func (h *darwinHandle) open() error {
	if C.allsmi_ioreport_open() != 0 {
		return errors.New("session: IOReport subscription failed to open")
	}

	h.opened = true

	return nil
}

func (h *darwinHandle) sample() (SocMetrics, error) {
	if !h.opened {
		return SocMetrics{}, errors.New("session: darwin handle not open")
	}

	m := C.allsmi_ioreport_sample()

	return SocMetrics{
		CPUPowerWatts: float64(m.cpuPowerWatts),
		GPUPowerWatts: float64(m.gpuPowerWatts),
		ANEPowerWatts: float64(m.anePowerWatts),
		GPUFreqMHz:    float64(m.gpuFreqMHz),
		SocTempC:      float64(m.socTempC),
		ANEOpsPerSec:  float64(m.aneOpsPerSec),
		ThermalState:  int(C.allsmi_ioreport_thermal_state()),
	}, nil
}

func (h *darwinHandle) close() {
	if h.opened {
		C.allsmi_ioreport_close()
		h.opened = false
	}
}
