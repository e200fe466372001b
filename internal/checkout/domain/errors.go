// internal/checkout/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind 是扁平化的错误分类，替代原系统深层的异常子类体系。
// 传输层只依赖 Kind 做状态码映射，不关心具体错误类型。
type ErrorKind string

const (
	KindValidation             ErrorKind = "VALIDATION"
	KindInsufficientStock      ErrorKind = "INSUFFICIENT_STOCK"
	KindClientResolution       ErrorKind = "CLIENT_RESOLUTION"
	KindConsentRequired        ErrorKind = "CONSENT_REQUIRED"
	KindInstrumentTokenization ErrorKind = "INSTRUMENT_TOKENIZATION"
	KindChargeDeclined         ErrorKind = "CHARGE_DECLINED"
	KindChargeAmbiguous        ErrorKind = "CHARGE_AMBIGUOUS"
	KindGateway                ErrorKind = "GATEWAY"
	KindDeliveryCreation       ErrorKind = "DELIVERY_CREATION"
	KindInternal               ErrorKind = "INTERNAL"
)

// Error 携带分类标签的领域错误。
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// E 构造一个不带底层原因的领域错误。
func E(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapE 把底层错误包装为领域错误，保留错误链。
func WrapE(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf 提取错误的分类；非领域错误一律归为 INTERNAL。
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind 判断错误链上是否存在指定分类的领域错误。
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
