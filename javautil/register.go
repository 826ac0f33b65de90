package javautil

import (
	"reflect"

	javaobs "github.com/lujjjh/go-javaobs"
)

// Register binds Date and HashMap in reg and supplies their descriptors
// so that instances built in Go can be written without a sample stream.
func Register(reg *javaobs.Registry) error {
	if err := reg.Register(DateClass, reflect.TypeOf(Date{}), javaobs.CustomSerialization); err != nil {
		return err
	}
	if err := reg.Register(HashMapClass, reflect.TypeOf(HashMap{}), javaobs.CustomSerialization); err != nil {
		return err
	}
	reg.AddDescriptor(DateDescriptor())
	reg.AddDescriptor(HashMapDescriptor())
	return nil
}
