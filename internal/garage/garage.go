package garage

import "sync"

// Observer 车库变更观察者
// 事件推送客户端用它把车辆增删镜像为订阅/退订
type Observer interface {
	VehicleAdded(v *Vehicle)
	VehicleRemoved(v *Vehicle)
}

// Garage 按 VIN 索引的车辆集合，被轮询线程和事件线程共享
type Garage struct {
	mu        sync.RWMutex
	vehicles  map[string]*Vehicle
	observers []Observer
}

// New 创建空车库
func New() *Garage {
	return &Garage{
		vehicles: make(map[string]*Vehicle),
	}
}

// AddObserver 注册观察者
func (g *Garage) AddObserver(o Observer) {
	g.mu.Lock()
	g.observers = append(g.observers, o)
	g.mu.Unlock()
}

// RemoveObserver 注销观察者
func (g *Garage) RemoveObserver(o Observer) {
	g.mu.Lock()
	for i, existing := range g.observers {
		if existing == o {
			g.observers = append(g.observers[:i], g.observers[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
}

// Add 添加车辆并通知观察者
func (g *Garage) Add(v *Vehicle) {
	g.mu.Lock()
	g.vehicles[v.VIN] = v
	observers := append([]Observer(nil), g.observers...)
	g.mu.Unlock()

	for _, o := range observers {
		o.VehicleAdded(v)
	}
}

// Replace 按 VIN 替换车辆（动力类型晋升时使用），不触发订阅变更
func (g *Garage) Replace(v *Vehicle) {
	g.mu.Lock()
	g.vehicles[v.VIN] = v
	g.mu.Unlock()
}

// Remove 移除车辆并通知观察者
func (g *Garage) Remove(vin string) {
	g.mu.Lock()
	v, ok := g.vehicles[vin]
	if ok {
		delete(g.vehicles, vin)
	}
	observers := append([]Observer(nil), g.observers...)
	g.mu.Unlock()

	if ok {
		for _, o := range observers {
			o.VehicleRemoved(v)
		}
	}
}

// Get 按 VIN 查找车辆
func (g *Garage) Get(vin string) (*Vehicle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vehicles[vin]
	return v, ok
}

// List 所有车辆
func (g *Garage) List() []*Vehicle {
	g.mu.RLock()
	defer g.mu.RUnlock()
	vehicles := make([]*Vehicle, 0, len(g.vehicles))
	for _, v := range g.vehicles {
		vehicles = append(vehicles, v)
	}
	return vehicles
}

// VINs 所有 VIN
func (g *Garage) VINs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	vins := make([]string, 0, len(g.vehicles))
	for vin := range g.vehicles {
		vins = append(vins, vin)
	}
	return vins
}
