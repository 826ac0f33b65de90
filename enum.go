package javaobs

// Enum is an enum constant read from a TC_ENUM entry.
type Enum struct {
	Class *ClassDescriptor
	Name  string
}

func (e *Enum) ClassName() string {
	if e.Class == nil {
		return ""
	}
	return e.Class.Name
}

func (e *Enum) String() string {
	return e.ClassName() + "." + e.Name
}

// Class is a java.lang.Class instance read from a TC_CLASS entry.
type Class struct {
	Desc *ClassDescriptor
}

func (c *Class) ClassName() string {
	return "java.lang.Class"
}
