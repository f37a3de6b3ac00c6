package define

// Instances records the concrete text produced by each expansion of one
// define during a run. It is append only.
type Instances struct {
	define    *Define
	instances []string
}

func NewInstances(d *Define) *Instances {
	return &Instances{define: d}
}

func (i *Instances) Define() *Define { return i.define }

func (i *Instances) Add(instance string) {
	i.instances = append(i.instances, instance)
}

func (i *Instances) Instances() []string { return i.instances }

func (i *Instances) Len() int { return len(i.instances) }
