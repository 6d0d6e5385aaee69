// Package pamhost is the only package besides cmd/pambridge that touches
// cgo: it implements hostapi.Handle against the real libpam C API,
// confining every unsafe.Pointer and C string conversion to this one
// file so the rest of the bridge (dispatcher, wire, orchestrator) stays
// pure Go and independently testable against fakes.
package pamhost

/*
#cgo LDFLAGS: -lpam
#include <security/pam_appl.h>
#include <security/pam_modules.h>
#include <security/pam_ext.h>
#include <stdlib.h>
#include <string.h>

// call_pam_conv invokes the host application's already-installed
// conversation callback (fetched via pam_get_item(PAM_CONV)). Go cannot
// call a C function pointer field directly, so this one-line trampoline
// exists purely to make the indirect call from cgo.
static int call_pam_conv(struct pam_conv *conv, int n, struct pam_message **msg, struct pam_response **resp) {
    return conv->conv(n, (const struct pam_message **)msg, resp, conv->appdata_ptr);
}
*/
import "C"

import (
	"unsafe"

	"github.com/aras-services/pam-policy-bridge/internal/hostapi"
	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

// Handle adapts one *C.pam_handle_t into hostapi.Handle. It is created
// once per hook invocation by cmd/pambridge and never crosses into the
// child process — the cgo pointer it wraps is only valid for the
// lifetime of the pam_sm_* call that received it.
type Handle struct {
	pamh *C.pam_handle_t
}

var _ hostapi.Handle = (*Handle)(nil)

// New wraps a raw pam_handle_t pointer received by a pam_sm_* export.
// The wrapper is only valid for the duration of that call.
func New(raw unsafe.Pointer) *Handle {
	return &Handle{pamh: (*C.pam_handle_t)(raw)}
}

func (h *Handle) GetItem(itemType hostitem.Type) (pamcode.Code, *hostitem.XAuthData, []byte, error) {
	if itemType == hostitem.XAuthData {
		var raw unsafe.Pointer
		retval := C.pam_get_item(h.pamh, C.int(itemType), &raw)
		if pamcode.Code(retval) != pamcode.Success || raw == nil {
			return pamcode.Code(retval), nil, nil, nil
		}
		xauth := (*C.struct_pam_xauth_data)(raw)
		name := C.GoBytes(unsafe.Pointer(xauth.name), C.int(xauth.namelen))
		data := C.GoBytes(unsafe.Pointer(xauth.data), C.int(xauth.datalen))
		return pamcode.Success, &hostitem.XAuthData{Name: name, Data: data}, nil, nil
	}

	var raw unsafe.Pointer
	retval := C.pam_get_item(h.pamh, C.int(itemType), &raw)
	if pamcode.Code(retval) != pamcode.Success || raw == nil {
		return pamcode.Code(retval), nil, nil, nil
	}
	s := C.GoString((*C.char)(raw))
	return pamcode.Success, nil, []byte(s), nil
}

func (h *Handle) SetItem(itemType hostitem.Type, xauth *hostitem.XAuthData, data []byte) (pamcode.Code, error) {
	if itemType == hostitem.XAuthData && xauth != nil {
		cName := C.CBytes(xauth.Name)
		defer C.free(cName)
		cData := C.CBytes(xauth.Data)
		defer C.free(cData)

		var rec C.struct_pam_xauth_data
		rec.namelen = C.int(len(xauth.Name))
		rec.name = (*C.char)(cName)
		rec.datalen = C.int(len(xauth.Data))
		rec.data = (*C.char)(cData)

		retval := C.pam_set_item(h.pamh, C.int(itemType), unsafe.Pointer(&rec))
		return pamcode.Code(retval), nil
	}

	cstr := C.CString(string(data))
	defer C.free(unsafe.Pointer(cstr))
	retval := C.pam_set_item(h.pamh, C.int(itemType), unsafe.Pointer(cstr))
	return pamcode.Code(retval), nil
}

func (h *Handle) GetUser(prompt string) (pamcode.Code, string, error) {
	var cPrompt *C.char
	if prompt != "" {
		cPrompt = C.CString(prompt)
		defer C.free(unsafe.Pointer(cPrompt))
	}
	var raw *C.char
	retval := C.pam_get_user(h.pamh, &raw, cPrompt)
	if pamcode.Code(retval) != pamcode.Success || raw == nil {
		return pamcode.Code(retval), "", nil
	}
	return pamcode.Success, C.GoString(raw), nil
}

func (h *Handle) Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error) {
	var convPtr unsafe.Pointer
	retval := C.pam_get_item(h.pamh, C.PAM_CONV, &convPtr)
	if pamcode.Code(retval) != pamcode.Success || convPtr == nil {
		return pamcode.Code(retval), nil, nil
	}

	cMsgs := make([]C.struct_pam_message, len(msgs))
	for i, m := range msgs {
		cMsgs[i].msg_style = C.int(m.Style)
		cMsgs[i].msg = C.CString(m.Text)
	}
	defer func() {
		for i := range cMsgs {
			C.free(unsafe.Pointer(cMsgs[i].msg))
		}
	}()

	msgPtrs := make([]*C.struct_pam_message, len(cMsgs))
	for i := range cMsgs {
		msgPtrs[i] = &cMsgs[i]
	}

	conv := (*C.struct_pam_conv)(convPtr)
	var cResp *C.struct_pam_response
	callRetval := C.int(C.PAM_CONV_ERR)
	if conv.conv != nil {
		callRetval = C.call_pam_conv(conv, C.int(len(msgPtrs)), &msgPtrs[0], &cResp)
	}
	if pamcode.Code(callRetval) != pamcode.Success || cResp == nil {
		return pamcode.Code(callRetval), nil, nil
	}
	defer freeResponses(cResp, len(msgs))

	resps := make([]hostitem.Response, len(msgs))
	cRespSlice := unsafe.Slice(cResp, len(msgs))
	for i, r := range cRespSlice {
		resps[i] = hostitem.Response{RetCode: int(r.resp_retcode)}
		if r.resp != nil {
			resps[i].Text = []byte(C.GoString(r.resp))
			resps[i].HasText = true
		}
	}
	return pamcode.Success, resps, nil
}

func freeResponses(resp *C.struct_pam_response, n int) {
	slice := unsafe.Slice(resp, n)
	for i := range slice {
		if slice[i].resp != nil {
			C.free(unsafe.Pointer(slice[i].resp))
		}
	}
	C.free(unsafe.Pointer(resp))
}

func (h *Handle) FailDelay(usec int) (pamcode.Code, error) {
	retval := C.pam_fail_delay(h.pamh, C.uint(usec))
	return pamcode.Code(retval), nil
}

func (h *Handle) StrError(errnum int) string {
	return C.GoString(C.pam_strerror(h.pamh, C.int(errnum)))
}

func (h *Handle) Syslog(priority int, msg string) {
	cstr := C.CString(msg)
	defer C.free(unsafe.Pointer(cstr))
	cfmt := C.CString("%s")
	defer C.free(unsafe.Pointer(cfmt))
	C.pam_syslog(h.pamh, C.int(priority), cfmt, cstr)
}
