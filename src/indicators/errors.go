package indicators

import "errors"

var (
	// ErrInsufficientData 数据不足以计算
	ErrInsufficientData = errors.New("insufficient data for calculation")

	// ErrInvalidPeriod 周期必须大于0
	ErrInvalidPeriod = errors.New("invalid period, must be greater than 0")

	// ErrInvalidMultiplier 倍数必须大于0
	ErrInvalidMultiplier = errors.New("invalid multiplier, must be greater than 0")

	// ErrEmptyPrices 空序列
	ErrEmptyPrices = errors.New("empty prices array")

	// ErrZeroRange 分母为0(均量为0、中轨为0等)
	ErrZeroRange = errors.New("zero range in denominator")

	// ErrLengthMismatch 多条输入序列长度不一致
	ErrLengthMismatch = errors.New("input series length mismatch")
)

