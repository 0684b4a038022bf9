package skoda

// GarageResponse 车库列表响应
type GarageResponse struct {
	Vehicles []GarageVehicle `json:"vehicles"`
}

// GarageVehicle 车库列表中的单辆车
type GarageVehicle struct {
	VIN           string        `json:"vin"`
	Name          string        `json:"name"`
	LicensePlate  string        `json:"licensePlate"`
	Specification Specification `json:"specification"`
}

// Specification 车辆规格
type Specification struct {
	Model     string `json:"model"`
	ModelYear string `json:"modelYear"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	TrimLevel string `json:"trimLevel"`
	Engine    Engine `json:"engine"`
}

// Engine 动力总成规格
type Engine struct {
	Type      string  `json:"type"`
	PowerInKW float64 `json:"powerInKW"`
	Capacity  string  `json:"capacityInLiters"`
}

// VehicleDetail 车辆详情，含能力列表
type VehicleDetail struct {
	VIN           string         `json:"vin"`
	Name          string         `json:"name"`
	LicensePlate  string         `json:"licensePlate"`
	Specification Specification  `json:"specification"`
	Capabilities  CapabilityList `json:"capabilities"`
	Renders       []Render       `json:"renders"`
}

// CapabilityList 能力集合的嵌套包装
type CapabilityList struct {
	Capabilities []CapabilityEntry `json:"capabilities"`
}

// CapabilityEntry 单项能力
type CapabilityEntry struct {
	ID       string   `json:"id"`
	Statuses []string `json:"statuses"`
}

// Render 车辆渲染图
type Render struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	View string `json:"viewType"`
}

// VehicleStatusResponse 车辆状态响应
type VehicleStatusResponse struct {
	Remote RemoteStatus `json:"remote"`
}

// RemoteStatus 车辆远程状态快照
type RemoteStatus struct {
	CapturedAt  string        `json:"capturedAt"`
	MileageInKm *float64      `json:"mileageInKm"`
	Status      OverallStatus `json:"status"`
	Doors       []NamedStatus `json:"doors"`
	Windows     []NamedStatus `json:"windows"`
	Lights      LightsStatus  `json:"lights"`
}

// OverallStatus 整车开闭和锁止状态
type OverallStatus struct {
	Open   string `json:"open"`
	Locked string `json:"locked"`
}

// NamedStatus 带名称的开闭状态（车门、车窗）
type NamedStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// LightsStatus 车灯状态
type LightsStatus struct {
	OverallStatus string        `json:"overallStatus"`
	LightsStatus  []NamedStatus `json:"lightsStatus"`
}

// DrivingRangeResponse 续航响应，携带动力总成类型
type DrivingRangeResponse struct {
	CarType              string       `json:"carType"`
	CarCapturedTimestamp string       `json:"carCapturedTimestamp"`
	TotalRangeInKm       *float64     `json:"totalRangeInKm"`
	PrimaryEngineRange   *EngineRange `json:"primaryEngineRange"`
	SecondaryEngineRange *EngineRange `json:"secondaryEngineRange"`
	AdBlueRange          *float64     `json:"adBlueRange"`
}

// EngineRange 单个动力源的续航
type EngineRange struct {
	EngineType                string   `json:"engineType"`
	CurrentSoCInPercent       *float64 `json:"currentSoCInPercent"`
	CurrentFuelLevelInPercent *float64 `json:"currentFuelLevelInPercent"`
	RemainingRangeInKm        *float64 `json:"remainingRangeInKm"`
}

// ChargingResponse 充电状态响应
type ChargingResponse struct {
	CarCapturedTimestamp string            `json:"carCapturedTimestamp"`
	Errors               []APIErrorEntry   `json:"errors"`
	Status               *ChargingStatus   `json:"status"`
	Settings             *ChargingSettings `json:"settings"`
	ChargeMode           string            `json:"chargeMode"`
}

// ChargingStatus 充电过程状态
type ChargingStatus struct {
	State                                string   `json:"state"`
	ChargeType                           string   `json:"chargeType"`
	ChargingRateInKilometersPerHour      *float64 `json:"chargingRateInKilometersPerHour"`
	ChargePowerInKw                      *float64 `json:"chargePowerInKw"`
	RemainingTimeToFullyChargedInMinutes *float64 `json:"remainingTimeToFullyChargedInMinutes"`
	Battery                              *Battery `json:"battery"`
}

// Battery 动力电池状态
type Battery struct {
	StateOfChargeInPercent         *float64 `json:"stateOfChargeInPercent"`
	RemainingCruisingRangeInMeters *float64 `json:"remainingCruisingRangeInMeters"`
}

// ChargingSettings 充电设置
type ChargingSettings struct {
	AutoUnlockPlugWhenCharged    string   `json:"autoUnlockPlugWhenCharged"`
	MaxChargeCurrentAc           string   `json:"maxChargeCurrentAc"`
	TargetStateOfChargeInPercent *float64 `json:"targetStateOfChargeInPercent"`
}

// APIErrorEntry 厂商侧错误项
type APIErrorEntry struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AirConditioningResponse 空调状态响应
type AirConditioningResponse struct {
	CarCapturedTimestamp                      string              `json:"carCapturedTimestamp"`
	State                                     string              `json:"state"`
	EstimatedDateTimeToReachTargetTemperature string              `json:"estimatedDateTimeToReachTargetTemperature"`
	TargetTemperature                         *TargetTemperature  `json:"targetTemperature"`
	WindowHeatingState                        *WindowHeatingState `json:"windowHeatingState"`
	Errors                                    []APIErrorEntry     `json:"errors"`
}

// TargetTemperature 目标温度
type TargetTemperature struct {
	TemperatureValue float64 `json:"temperatureValue"`
	UnitInCar        string  `json:"unitInCar"`
}

// WindowHeatingState 前后风挡加热状态
type WindowHeatingState struct {
	Front string `json:"front"`
	Rear  string `json:"rear"`
}

// PositionsResponse 车辆定位响应
type PositionsResponse struct {
	Positions []Position      `json:"positions"`
	Errors    []APIErrorEntry `json:"errors"`
}

// Position 单个定位点
type Position struct {
	Type           string         `json:"type"`
	GPSCoordinates GPSCoordinates `json:"gpsCoordinates"`
}

// GPSCoordinates 坐标
type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MaintenanceResponse 保养数据响应
type MaintenanceResponse struct {
	MaintenanceReport *MaintenanceReport `json:"maintenanceReport"`
}

// MaintenanceReport 保养报告
type MaintenanceReport struct {
	CapturedAt          string   `json:"capturedAt"`
	MileageInKm         *float64 `json:"mileageInKm"`
	InspectionDueInDays *float64 `json:"inspectionDueInDays"`
	InspectionDueInKm   *float64 `json:"inspectionDueInKm"`
	OilServiceDueInDays *float64 `json:"oilServiceDueInDays"`
	OilServiceDueInKm   *float64 `json:"oilServiceDueInKm"`
}

// UserResponse 账号信息响应
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// OperationResponse 远程指令受理响应
type OperationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
