package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
	"gopkg.in/yaml.v3"

	"signalengine/src/config"
	"signalengine/src/database"
	"signalengine/src/strategies"
	"signalengine/src/strategy"
)

// RegisterStrategiesCmd 注册策略查看命令
func RegisterStrategiesCmd() {
	var typeName string
	var loaded bool
	var sync bool

	cmd.RegisterCmd("strategies", "list supported strategy types, their defaults and loaded instances", func(args *arg.Arg) {
		args.String(&typeName, "t", "show default parameters of one strategy type")
		args.Bool(&loaded, "l", "list loaded instances with statistics")
		args.Bool(&sync, "sync", "copy definitions from the strategies file into postgres")
		args.Parse()

		var err error
		switch {
		case sync:
			err = runSyncDefinitions()
		case loaded:
			err = runListInstances()
		case typeName != "":
			err = printDefaults(strategy.Type(typeName))
		default:
			printSupportedTypes()
		}
		if err != nil {
			fmt.Printf("❌ %v\n", err)
		}
	})
}

func printSupportedTypes() {
	fmt.Println("📋 支持的策略类型")
	fmt.Println("================================")
	for _, family := range []strategy.Family{strategy.FamilyEntry, strategy.FamilyExit} {
		fmt.Printf("🔸 %s\n", family)
		for _, typ := range strategies.SupportedTypes() {
			if typ.Family() != family {
				continue
			}
			names, _ := strategies.ParameterNames(typ)
			fmt.Printf("   %-24s %s\n", typ, strings.Join(names, ", "))
		}
	}
}

func printDefaults(typ strategy.Type) error {
	params, err := strategies.DefaultParameters(typ)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	fmt.Printf("📋 %s 默认参数\n", typ)
	fmt.Println("================================")
	fmt.Print(string(out))
	return nil
}

func runListInstances() error {
	rt, err := newRuntime(context.Background())
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := rt.service.Registry()
	if reg.Len() == 0 {
		fmt.Println("⚠️ 未加载任何策略实例")
		return nil
	}
	fmt.Println("ID   | 名称                 | 类型                     | 状态     | 信号 (买/卖/观望)")
	fmt.Println("-----|----------------------|--------------------------|----------|------------------")
	for _, id := range reg.IDs() {
		inst, err := reg.Get(id)
		if err != nil {
			continue
		}
		def, s := inst.Definition(), inst.Statistics()
		fmt.Printf("%-4d | %-20s | %-24s | %-8s | %d/%d/%d\n",
			def.ID, s.Name, def.Type, s.Status, s.Buy, s.Sell, s.Hold)
	}
	return nil
}

func runSyncDefinitions() error {
	defs, err := database.LoadDefinitionsFile(strategiesFile(config.AppConfig.Engine.StrategiesFile))
	if err != nil {
		return err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })

	db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	if err := db.SyncDefinitions(ctx, defs); err != nil {
		return err
	}
	fmt.Printf("✅ 已同步 %d 条策略定义\n", len(defs))
	return nil
}
