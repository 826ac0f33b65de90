package javaobs

// CustomSerializer is implemented by host types bound with the
// CustomSerialization capability. The decoder and encoder call these in
// place of default field traversal, once per class level bound to the
// type. Implementations use the primitive, block-data and nested object
// methods of the session, and DefaultReadObject/DefaultWriteObject when
// the foreign class wrote its declared fields first.
type CustomSerializer interface {
	ReadCustomData(dec *Decoder) error
	WriteCustomData(enc *Encoder) error
}

// ClassNamer lets a Go value name the foreign class it is encoded as.
type ClassNamer interface {
	ClassName() string
}

func className(object any) string {
	if classNamer, ok := object.(ClassNamer); ok {
		return classNamer.ClassName()
	}
	return ""
}
